package exports

import (
	"fmt"
	"strings"

	"apalloc_backend/internal/breakdown"
	"apalloc_backend/internal/money"
	"apalloc_backend/internal/tabular"

	"github.com/shopspring/decimal"
)

// DeviceOptions configures the device-centric parser: the flat cost
// charged per managed device, the license name the charges post under,
// and the username-to-branch remap table.
type DeviceOptions struct {
	PerDeviceCost decimal.Decimal
	License       string
	BranchAliases map[string]string
}

// DefaultDeviceOptions is the standing MDM contract: $2.00 per device
// under the UEM Cloud Pro license, with the enrollment default account
// remapped to Home Office.
func DefaultDeviceOptions() DeviceOptions {
	return DeviceOptions{
		PerDeviceCost: money.MustParse("2.00"),
		License:       "UEM Cloud Pro Edition",
		BranchAliases: map[string]string{
			"Default User": "Home Office",
		},
	}
}

// ParseDevice reads a device-centric export where the username column
// doubles as the branch: one device row becomes one charge row at the
// fixed per-device cost. Blank usernames are skipped with a warning.
func ParseDevice(t tabular.Table, opts DeviceOptions) RowsResult {
	result := RowsResult{Filename: t.Filename}
	if len(t.Headers) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no headers found; file skipped.", t.Filename))
		return result
	}

	usernameCol, ok := tabular.MatchRole(t.Headers, "username")
	if !ok {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: could not find Username/Branch column for device export.", t.Filename))
		return result
	}

	for i, row := range t.Rows {
		lineNumber := i + 2
		rawBranch := strings.TrimSpace(row.Get(usernameCol))
		if rawBranch == "" {
			result.RowsSkipped++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: row %d skipped (blank Username/Branch).", t.Filename, lineNumber))
			continue
		}

		branch := rawBranch
		if mapped, ok := opts.BranchAliases[rawBranch]; ok {
			branch = mapped
		}
		result.Rows = append(result.Rows, breakdown.Row{
			SourceFile: t.Filename,
			Branch:     branch,
			License:    opts.License,
			Amount:     opts.PerDeviceCost,
		})
	}
	return result
}
