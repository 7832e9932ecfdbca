package inventory

import "github.com/shopspring/decimal"

// AverageCost implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// Si el denominador es cero o negativo devuelve CostoEntrada y degenerate=true.
func AverageCost(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) (cost decimal.Decimal, degenerate bool) {
	sum := stockActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return costoEntrada, true
	}
	num := stockActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.Div(sum), false
}

// CostSlice cantidad consumida de un quant con su costo.
type CostSlice struct {
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// WeightedCost costo promedio ponderado por cantidad de las porciones consumidas.
// ok=false si la cantidad total no es positiva.
func WeightedCost(slices []CostSlice) (cost decimal.Decimal, ok bool) {
	qty := decimal.Zero
	value := decimal.Zero
	for _, s := range slices {
		qty = qty.Add(s.Quantity)
		value = value.Add(s.Quantity.Mul(s.Cost))
	}
	if !qty.IsPositive() {
		return decimal.Zero, false
	}
	return value.Div(qty), true
}

// ReattributePrice corrige el precio unitario de un movimiento ya hecho cuando qty unidades
// valoradas a oldCost pasan a valorarse a newCost.
func ReattributePrice(priceUnit, qtyDone, qty, oldCost, newCost decimal.Decimal) decimal.Decimal {
	if !qtyDone.IsPositive() {
		return priceUnit
	}
	value := priceUnit.Mul(qtyDone).Add(newCost.Sub(oldCost).Mul(qty))
	return value.Div(qtyDone)
}
