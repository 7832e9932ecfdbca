package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FiltersQuery filtros de lote/paquete/propietario en query string.
// without_* = true pide quants sin ese atributo.
type FiltersQuery struct {
	LotID          string `query:"lot_id"`
	WithoutLot     bool   `query:"without_lot"`
	PackageID      string `query:"package_id"`
	WithoutPackage bool   `query:"without_package"`
	OwnerID        string `query:"owner_id"`
	WithoutOwner   bool   `query:"without_owner"`
}
