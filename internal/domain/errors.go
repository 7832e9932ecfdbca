package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound                 = errors.New("recurso no encontrado")
	ErrInvalidInput             = errors.New("entrada inválida")
	ErrUnauthorized             = errors.New("no autorizado")
	ErrForbidden                = errors.New("acceso denegado")
	ErrConflict                 = errors.New("conflicto con el estado actual")
	ErrInsufficientStock        = errors.New("stock insuficiente")
	ErrInvalidFilterCombination = errors.New("combinación de filtros inválida")
	ErrRoundingViolation        = errors.New("la cantidad no respeta la precisión de redondeo de la unidad")
	ErrInvalidState             = errors.New("estado del movimiento no permite la operación")
)
