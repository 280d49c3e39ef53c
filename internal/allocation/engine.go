package allocation

import (
	"fmt"
	"sort"
	"strings"

	"apalloc_backend/internal/breakdown"
	"apalloc_backend/internal/canonical"
	"apalloc_backend/internal/exports"
	"apalloc_backend/internal/invoice"
	"apalloc_backend/internal/money"

	"github.com/shopspring/decimal"
)

const (
	allocationTypeFixed = "Fixed Branch Item"
	allocationTypeDelta = "Invoice Delta"

	invoiceSourceFile = "invoice"
)

// Engine applies the vendor rule tables. It is pure: every call takes
// immutable inputs and returns new structures, so concurrent passes
// for independent requests are safe.
type Engine struct {
	rules *Rules
	vocab *canonical.Vocabulary
}

// NewEngine wires the startup-loaded rule table and vocabulary.
func NewEngine(rules *Rules, vocab *canonical.Vocabulary) *Engine {
	return &Engine{rules: rules, vocab: vocab}
}

// Rules exposes the rule table for callers that need branch
// resolution outside a pass (export parsing, directory seeding).
func (e *Engine) Rules() *Rules { return e.rules }

// Vocabulary exposes the canonical vocabulary so invoice parsing can
// share the engine's startup-loaded tables.
func (e *Engine) Vocabulary() *canonical.Vocabulary { return e.vocab }

// Input is one managed-vendor allocation pass: export users, the
// directory snapshot, canonical invoice lines, and any prompt
// submissions carried over from the previous pass. Nothing else is
// carried across calls.
type Input struct {
	Users             []exports.User
	Directory         map[string]Profile
	Lines             []invoice.Line
	PromptSubmissions []PromptSubmission
}

// userAccum accumulates one person's licenses and total across lines.
type userAccum struct {
	row      UserRow
	licenses []string
	total    decimal.Decimal
}

// Allocate runs the per-line policy state machine over a
// managed-services invoice and the matching per-seat export users.
func (e *Engine) Allocate(in Input) Result {
	var result Result

	submissions := make(map[promptKey]string)
	for _, s := range in.PromptSubmissions {
		lineKey := money.NormalizeText(s.LineKey)
		if lineKey == "" || s.PromptIndex < 1 {
			continue
		}
		submissions[promptKey{lineKey, s.PromptIndex}] = money.NormalizeText(s.Branch)
	}

	users, order := e.collectUsers(in.Users, in.Directory, &result)

	var nonUserRaw []breakdownTyped
	for i, line := range in.Lines {
		lineKey := fmt.Sprintf("%d:%s", i+1, line.CanonicalName)
		policy := e.rules.PolicyFor(line.CanonicalName)

		if policy.Kind == DynamicMatch {
			deltas := e.allocateDynamicLine(line, policy, in.Users, users, &result)
			nonUserRaw = append(nonUserRaw, deltas...)
			continue
		}

		alloc := e.allocateFixedLine(line, lineKey, policy, submissions)
		result.Rows = append(result.Rows, alloc.rows...)
		for _, row := range alloc.rows {
			nonUserRaw = append(nonUserRaw, breakdownTyped{row: row, allocationType: allocationTypeFixed})
		}
		result.Warnings = append(result.Warnings, alloc.warnings...)
		result.BranchPrompts = append(result.BranchPrompts, alloc.prompts...)
	}

	result.NonUserRows = groupNonUserRows(nonUserRaw)
	result.UserRows = finishUserRows(users, order)
	return result
}

// collectUsers merges export users by normalized email, resolving each
// branch from the directory first and the export default second. A
// user with no resolvable branch lands in UnresolvedEmails.
func (e *Engine) collectUsers(exportUsers []exports.User, directory map[string]Profile, result *Result) (map[string]*userAccum, []string) {
	users := make(map[string]*userAccum)
	var order []string
	unresolved := make(map[string]struct{})

	for _, user := range exportUsers {
		email := money.NormalizeEmail(user.Email)
		if email == "" {
			continue
		}

		profile, hasProfile := directory[email]
		branch := money.NormalizeText(profile.Branch)
		if branch == "" {
			branch = money.NormalizeText(user.DefaultBranch)
		}
		firstName := money.NormalizeText(user.FirstName)
		lastName := money.NormalizeText(user.LastName)
		if hasProfile {
			if firstName == "" {
				firstName = money.NormalizeText(profile.FirstName)
			}
			if lastName == "" {
				lastName = money.NormalizeText(profile.LastName)
			}
		}

		entry, ok := users[email]
		if !ok {
			entry = &userAccum{row: UserRow{
				Email:     email,
				FirstName: firstName,
				LastName:  lastName,
				Branch:    branch,
				KnownUser: hasProfile && money.NormalizeText(profile.Branch) != "",
			}}
			users[email] = entry
			order = append(order, email)
		} else {
			if entry.row.Branch == "" {
				entry.row.Branch = branch
			}
			if entry.row.FirstName == "" {
				entry.row.FirstName = firstName
			}
			if entry.row.LastName == "" {
				entry.row.LastName = lastName
			}
		}

		if entry.row.Branch == "" {
			if _, seen := unresolved[email]; !seen {
				unresolved[email] = struct{}{}
				result.UnresolvedEmails = append(result.UnresolvedEmails, email)
			}
		}
	}
	return users, order
}

// allocateDynamicLine posts one unit at the line's unit price to every
// matched user's branch, then reconciles against the authoritative
// amount with a single home-office delta row.
func (e *Engine) allocateDynamicLine(line invoice.Line, policy Policy, exportUsers []exports.User, users map[string]*userAccum, result *Result) []breakdownTyped {
	matched := 0
	for _, user := range exportUsers {
		if !userMatchesAnyOf(user, policy.AnyOf) {
			continue
		}
		matched++
		entry, ok := users[money.NormalizeEmail(user.Email)]
		if !ok {
			continue
		}
		if !containsString(entry.licenses, line.CanonicalName) {
			entry.licenses = append(entry.licenses, line.CanonicalName)
		}
		entry.total = entry.total.Add(line.UnitPrice)
		if entry.row.Branch != "" {
			result.Rows = append(result.Rows, breakdown.Row{
				SourceFile: invoiceSourceFile,
				Branch:     entry.row.Branch,
				License:    line.CanonicalName,
				Amount:     line.UnitPrice,
			})
		}
	}

	quantity := int(line.Quantity.IntPart())
	if matched != quantity {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s: invoice quantity is %d, matched users are %d; difference allocated to %s.",
			line.CanonicalName, quantity, matched, e.rules.HomeOffice))
	}

	allocated := money.Quantize(line.UnitPrice.Mul(decimal.NewFromInt(int64(matched))))
	remainder := money.Quantize(line.Amount.Sub(allocated))
	if remainder.IsZero() {
		return nil
	}
	row := breakdown.Row{
		SourceFile: invoiceSourceFile,
		Branch:     e.rules.HomeOffice,
		License:    line.CanonicalName,
		Amount:     remainder,
	}
	result.Rows = append(result.Rows, row)
	return []breakdownTyped{{row: row, allocationType: allocationTypeDelta}}
}

func userMatchesAnyOf(user exports.User, anyOf []string) bool {
	for _, token := range user.Products {
		for _, want := range anyOf {
			if token == want {
				return true
			}
		}
	}
	return false
}

type promptKey struct {
	lineKey     string
	promptIndex int
}

type breakdownTyped struct {
	row            breakdown.Row
	allocationType string
}

// lineAlloc is the outcome of one non-dynamic invoice line.
type lineAlloc struct {
	rows     []breakdown.Row
	warnings []string
	prompts  []BranchPrompt
}

func (a *lineAlloc) addRow(homeOffice, branch, license string, amount decimal.Decimal) {
	amount = money.Quantize(amount)
	if amount.IsZero() {
		return
	}
	if branch == "" {
		branch = homeOffice
	}
	a.rows = append(a.rows, breakdown.Row{
		SourceFile: invoiceSourceFile,
		Branch:     branch,
		License:    license,
		Amount:     amount,
	})
}

// allocateFixedLine dispatches the non-dynamic policy variants.
func (e *Engine) allocateFixedLine(line invoice.Line, lineKey string, policy Policy, submissions map[promptKey]string) lineAlloc {
	var alloc lineAlloc
	total := money.Quantize(line.Amount)

	switch policy.Kind {
	case FixedBranch:
		alloc.addRow(e.rules.HomeOffice, policy.Branch, line.CanonicalName, total)

	case Sequential:
		e.allocateSequential(&alloc, line, lineKey, policy.Branches, submissions)

	case SplitThreshold:
		if total.GreaterThanOrEqual(policy.threshold) {
			alloc.addRow(e.rules.HomeOffice, policy.ThresholdBranch, line.CanonicalName, policy.threshold)
			alloc.addRow(e.rules.HomeOffice, e.rules.HomeOffice, line.CanonicalName, total.Sub(policy.threshold))
		} else {
			alloc.addRow(e.rules.HomeOffice, e.rules.HomeOffice, line.CanonicalName, total)
			alloc.warnings = append(alloc.warnings, fmt.Sprintf(
				"%s: invoice amount was below expected split baseline; allocated entirely to %s.",
				line.CanonicalName, e.rules.HomeOffice))
		}

	default:
		alloc.addRow(e.rules.HomeOffice, e.rules.HomeOffice, line.CanonicalName, total)
		alloc.warnings = append(alloc.warnings, fmt.Sprintf(
			"%s: no allocation rule configured; amount allocated to %s.",
			line.CanonicalName, e.rules.HomeOffice))
	}
	return alloc
}

// allocateSequential assigns one unit per branch in list order, turns
// overflow units into prompts, and posts the residual to the home
// office only once every prompt is resolved.
func (e *Engine) allocateSequential(alloc *lineAlloc, line invoice.Line, lineKey string, branches []string, submissions map[promptKey]string) {
	quantity := int(line.Quantity.IntPart())
	if quantity < 0 {
		quantity = 0
	}
	unit := money.Quantize(line.UnitPrice)
	total := money.Quantize(line.Amount)

	assignedUnits := quantity
	if assignedUnits > len(branches) {
		assignedUnits = len(branches)
	}
	assignedOrder := append([]string(nil), branches[:assignedUnits]...)
	assignedSet := make(map[string]struct{}, len(assignedOrder))
	for _, branch := range assignedOrder {
		assignedSet[branch] = struct{}{}
		alloc.addRow(e.rules.HomeOffice, branch, line.CanonicalName, unit)
	}

	if quantity < len(branches) {
		alloc.warnings = append(alloc.warnings, fmt.Sprintf(
			"%s: invoice quantity is %d; template allocation used the first %d branches.",
			line.CanonicalName, quantity, assignedUnits))
	}

	addPrompt := func(promptIndex int, submitted, validationError string) {
		available := make([]string, 0, len(e.rules.KnownBranches))
		for _, branch := range e.rules.KnownBranches {
			if _, taken := assignedSet[branch]; !taken {
				available = append(available, branch)
			}
		}
		alloc.prompts = append(alloc.prompts, BranchPrompt{
			LineKey:           lineKey,
			PromptIndex:       promptIndex,
			License:           line.CanonicalName,
			UnitPrice:         unit,
			Quantity:          quantity,
			AlreadyAssigned:   append([]string(nil), assignedOrder...),
			AvailableBranches: available,
			SubmittedBranch:   submitted,
			ValidationError:   validationError,
		})
	}

	for promptIndex := 1; promptIndex <= quantity-len(branches); promptIndex++ {
		submitted := submissions[promptKey{lineKey, promptIndex}]
		if submitted == "" {
			addPrompt(promptIndex, "", "")
			continue
		}
		if _, taken := assignedSet[submitted]; taken {
			alloc.warnings = append(alloc.warnings, fmt.Sprintf(
				"%s: branch '%s' is already assigned; choose a different branch for extra license %d.",
				line.CanonicalName, submitted, promptIndex))
			addPrompt(promptIndex, submitted, fmt.Sprintf("%s is already assigned for this charge.", submitted))
			continue
		}
		alloc.addRow(e.rules.HomeOffice, submitted, line.CanonicalName, unit)
		assignedSet[submitted] = struct{}{}
		assignedOrder = append(assignedOrder, submitted)
	}

	if len(alloc.prompts) > 0 {
		alloc.warnings = append(alloc.warnings, fmt.Sprintf(
			"%s: %d extra branch assignment(s) required before this charge can be finalized.",
			line.CanonicalName, len(alloc.prompts)))
		return
	}

	assignedAmount := money.Quantize(unit.Mul(decimal.NewFromInt(int64(len(assignedOrder)))))
	remainder := money.Quantize(total.Sub(assignedAmount))
	if !remainder.IsZero() {
		alloc.addRow(e.rules.HomeOffice, e.rules.HomeOffice, line.CanonicalName, remainder)
	}
}

func groupNonUserRows(raw []breakdownTyped) []NonUserRow {
	type key struct{ branch, license, allocationType string }
	grouped := make(map[key]decimal.Decimal)
	for _, item := range raw {
		k := key{item.row.Branch, item.row.License, item.allocationType}
		grouped[k] = grouped[k].Add(item.row.Amount)
	}

	rows := make([]NonUserRow, 0, len(grouped))
	for k, total := range grouped {
		rows = append(rows, NonUserRow{
			Branch:         k.branch,
			License:        k.license,
			AllocationType: k.allocationType,
			TotalAmount:    money.Quantize(total),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Branch != rows[j].Branch {
			return rows[i].Branch < rows[j].Branch
		}
		if rows[i].License != rows[j].License {
			return rows[i].License < rows[j].License
		}
		return rows[i].AllocationType < rows[j].AllocationType
	})
	return rows
}

func finishUserRows(users map[string]*userAccum, order []string) []UserRow {
	rows := make([]UserRow, 0, len(order))
	for _, email := range order {
		entry := users[email]
		row := entry.row
		row.LicenseList = strings.Join(entry.licenses, ", ")
		row.UserTotal = money.Quantize(entry.total)
		row.KnownUser = row.Branch != ""
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastName != rows[j].LastName {
			return rows[i].LastName < rows[j].LastName
		}
		if rows[i].FirstName != rows[j].FirstName {
			return rows[i].FirstName < rows[j].FirstName
		}
		return rows[i].Email < rows[j].Email
	})
	return rows
}

func containsString(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
