package forecast

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

var (
	minutesPerHour = decimal.NewFromInt(60)
	hundred        = decimal.NewFromInt(100)
)

// unitCost is the per-unit cost of one routing.
type unitCost struct {
	Machine decimal.Decimal
	Labor   decimal.Decimal
}

// bomCosts sums material cost per BOM key.
func bomCosts(lines []core.BOMLine, strategy core.BOMStrategy) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, l := range lines {
		key := strategy.CostKey(l.BOMID, l.Version)
		out[key] = out[key].Add(l.MaterialCost)
	}
	return out
}

// rateResolver picks the hourly rate for a labor type.
type rateResolver struct {
	rates    map[string]decimal.Decimal
	fallback decimal.Decimal
	warned   map[string]bool
	warn     func(string)
}

func (r *rateResolver) rate(laborType string) decimal.Decimal {
	if laborType == "" {
		laborType = core.DefaultLaborRateID
	}
	if rate, ok := r.rates[laborType]; ok {
		return rate
	}
	if !r.warned[laborType] {
		r.warned[laborType] = true
		r.warn(fmt.Sprintf("labor type %s has no rate; using average %s", laborType, r.fallback.StringFixed(2)))
	}
	return r.fallback
}

// routerCosts sums machine and labor cost per router key.
func routerCosts(
	ops []core.RouterOperation,
	machines map[string]core.Machine,
	rates *rateResolver,
	strategy core.BOMStrategy,
	warn func(string),
) map[string]unitCost {
	out := make(map[string]unitCost)
	for _, op := range ops {
		key := strategy.CostKey(op.RouterID, op.Version)
		c := out[key]

		m, ok := machines[op.MachineID]
		if !ok && op.MachineID != "" {
			warn(fmt.Sprintf("router %s step %d references unknown machine %s", key, op.Sequence, op.MachineID))
		}
		c.Machine = c.Machine.Add(op.MachineMinutes.Mul(m.MachineRate).Div(minutesPerHour))
		c.Labor = c.Labor.Add(op.LaborMinutes.Mul(rates.rate(op.LaborTypeID)).Div(minutesPerHour))
		out[key] = c
	}
	return out
}

// costLine prices one sales line. The stored revenue is used as is, even
// when it disagrees with quantity times unit price.
func costLine(
	line core.SalesLine,
	boms map[string]decimal.Decimal,
	routers map[string]unitCost,
	strategy core.BOMStrategy,
	forecastDate string,
) core.ForecastResult {
	qty := decimal.NewFromInt(line.Quantity)
	material := boms[strategy.CostKey(line.Product.BOMID, line.Product.BOMVersion)].Mul(qty)
	route := routers[strategy.CostKey(line.Product.RouterID, line.Product.RouterVersion)]
	machine := route.Machine.Mul(qty)
	labor := route.Labor.Mul(qty)

	total := material.Add(machine).Add(labor)
	margin := line.TotalRevenue.Sub(total)
	pct := decimal.Zero
	if line.TotalRevenue.IsPositive() {
		pct = margin.Div(line.TotalRevenue).Mul(hundred)
	}

	return core.ForecastResult{
		SaleID:             line.SaleID,
		Period:             line.Period,
		CustomerID:         line.CustomerID,
		CustomerName:       line.CustomerName,
		UnitID:             line.UnitID,
		UnitName:           line.UnitName,
		ForecastScenarioID: line.ForecastScenarioID,
		Quantity:           line.Quantity,
		UnitPrice:          line.UnitPrice,
		TotalRevenue:       line.TotalRevenue,
		MaterialCost:       material,
		LaborCost:          labor,
		MachineCost:        machine,
		TotalCost:          total,
		GrossMargin:        margin,
		MarginPercentage:   pct,
		ForecastDate:       forecastDate,
		BOMStrategy:        strategy,
	}
}

// machineLoads totals required machine minutes per period and machine.
func machineLoads(
	lines []core.SalesLine,
	ops []core.RouterOperation,
	machines map[string]core.Machine,
	strategy core.BOMStrategy,
	period string,
) []core.MachineLoad {
	byRouter := make(map[string][]core.RouterOperation)
	for _, op := range ops {
		if op.MachineID == "" {
			continue
		}
		key := strategy.CostKey(op.RouterID, op.Version)
		byRouter[key] = append(byRouter[key], op)
	}

	type loadKey struct{ period, machine string }
	required := make(map[loadKey]decimal.Decimal)
	for _, line := range lines {
		if period != "" && line.Period != period {
			continue
		}
		qty := decimal.NewFromInt(line.Quantity)
		for _, op := range byRouter[strategy.CostKey(line.Product.RouterID, line.Product.RouterVersion)] {
			k := loadKey{line.Period, op.MachineID}
			required[k] = required[k].Add(op.MachineMinutes.Mul(qty))
		}
	}

	out := make([]core.MachineLoad, 0, len(required))
	for k, minutes := range required {
		m := machines[k.machine]
		load := core.MachineLoad{
			Period:           k.period,
			MachineID:        k.machine,
			MachineName:      m.MachineName,
			RequiredMinutes:  minutes,
			AvailableMinutes: m.AvailableMinutesPerMonth,
			Utilization:      decimal.Zero,
		}
		if m.AvailableMinutesPerMonth > 0 {
			avail := decimal.NewFromInt(m.AvailableMinutesPerMonth)
			load.Utilization = minutes.Div(avail).Mul(hundred)
			load.CapacityExceeded = minutes.GreaterThan(avail)
		} else {
			load.CapacityExceeded = minutes.IsPositive()
		}
		out = append(out, load)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].MachineID < out[j].MachineID
	})
	return out
}
