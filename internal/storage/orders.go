package storage

import "time"

type ManufacturingOrder struct {
	ID          int64     `json:"id"`
	MONumber    string    `json:"mo_number"`
	Quantity    float64   `json:"quantity"`
	ProductName string    `json:"product_name"`
	RoutingName string    `json:"routing_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type Operator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
