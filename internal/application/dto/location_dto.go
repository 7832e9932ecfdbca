package dto

// CreateLocationRequest body para POST /api/locations. ID vacío = se genera.
type CreateLocationRequest struct {
	ID              string `json:"id,omitempty"`
	ParentID        string `json:"parent_id,omitempty"`
	Name            string `json:"name"`
	Usage           string `json:"usage"` // internal|view|supplier|customer|inventory|production|transit
	RemovalStrategy string `json:"removal_strategy,omitempty"`
	Sequence        int    `json:"sequence"`
}

// LocationResponse ubicación con su intervalo en el árbol.
type LocationResponse struct {
	ID              string `json:"id"`
	ParentID        string `json:"parent_id,omitempty"`
	CompanyID       string `json:"company_id,omitempty"`
	Name            string `json:"name"`
	Usage           string `json:"usage"`
	RemovalStrategy string `json:"removal_strategy,omitempty"`
	Sequence        int    `json:"sequence"`
	Left            int    `json:"left"`
	Right           int    `json:"right"`
}
