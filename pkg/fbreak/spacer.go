package fbreak

import (
	"fmt"

	"github.com/johnranson/formatbreaker/pkg/datasource"
)

// applySpacer reconciles the cursor with a field's pinned target address.
// A gap below the target is read and stored as a visible spacer entry;
// a cursor already past the target is a fatal address error. Addresses are
// monotonically non-decreasing within a scope.
func applySpacer(reg *datasource.Region, c *Context, target int64) error {
	current := reg.Address()
	if current == target {
		return nil
	}
	if current > target {
		return &datasource.AddressError{
			Op:      "spacer",
			Current: current,
			Want:    target,
			Reason:  "cursor already past the pinned field address",
		}
	}
	length := target - current
	raw, err := reg.ReadUnits(length)
	if err != nil {
		return asParseError(err)
	}
	label := fmt.Sprintf("spacer_0x%x", current)
	if length > 1 {
		label = fmt.Sprintf("spacer_0x%x-0x%x", current, target-1)
	}
	reg.Logger().Debug("inserted spacer", "label", label, "units", length)
	c.Set(label, raw)
	return nil
}
