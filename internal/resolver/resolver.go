package resolver

import (
	"context"
	"strings"

	"github.com/zapcampaign/zapcampaign/internal/domain"
)

// Directory looks up contact and group records the caller selected by id.
type Directory interface {
	ResolveContacts(ctx context.Context, ownerID string, ids []string) ([]domain.Contact, error)
	ResolveGroups(ctx context.Context, ownerID string, ids []string) ([]domain.Group, error)
}

// Result is a validated target list. Dropped counts phone candidates
// excluded by normalization; dropping is not an error.
type Result struct {
	Targets []domain.TargetDescriptor
	Dropped int
}

// Resolver turns heterogeneous recipient input (free-text phone lists,
// contact ids, group ids) into validated target descriptors.
type Resolver struct {
	defaultCountryCode string
	directory          Directory
}

func New(defaultCountryCode string, directory Directory) *Resolver {
	if defaultCountryCode == "" {
		defaultCountryCode = "55"
	}
	return &Resolver{
		defaultCountryCode: defaultCountryCode,
		directory:          directory,
	}
}

// ResolvePhones parses a raw blob of phone numbers separated by comma,
// semicolon or newline. Candidates that fail validation after
// normalization are silently dropped; only an empty outcome is an error.
func (r *Resolver) ResolvePhones(raw string) (Result, error) {
	var res Result
	for _, candidate := range splitCandidates(raw) {
		normalized, ok := r.normalize(candidate)
		if !ok {
			res.Dropped++
			continue
		}
		res.Targets = append(res.Targets, domain.TargetDescriptor{
			Kind:    domain.TargetPhone,
			Address: normalized,
		})
	}
	if len(res.Targets) == 0 {
		return Result{Dropped: res.Dropped}, domain.ErrNoValidRecipients
	}
	return res, nil
}

// ResolveContacts maps contact ids to their stored addresses. Unknown
// ids fail the whole call; contacts whose stored address does not pass
// validation are dropped like malformed raw phones.
func (r *Resolver) ResolveContacts(ctx context.Context, ownerID string, ids []string) (Result, error) {
	contacts, err := r.directory.ResolveContacts(ctx, ownerID, ids)
	if err != nil {
		return Result{}, err
	}

	found := make(map[string]domain.Contact, len(contacts))
	for _, c := range contacts {
		found[c.ID] = c
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Result{}, domain.NewUnresolvedRecipients(missing)
	}

	var res Result
	for _, id := range ids {
		normalized, ok := r.normalize(found[id].Address)
		if !ok {
			res.Dropped++
			continue
		}
		res.Targets = append(res.Targets, domain.TargetDescriptor{
			Kind:    domain.TargetContact,
			Address: normalized,
		})
	}
	if len(res.Targets) == 0 {
		return Result{Dropped: res.Dropped}, domain.ErrNoValidRecipients
	}
	return res, nil
}

// ResolveGroups maps group ids to group targets. Unknown ids fail the
// whole call.
func (r *Resolver) ResolveGroups(ctx context.Context, ownerID string, ids []string) (Result, error) {
	groups, err := r.directory.ResolveGroups(ctx, ownerID, ids)
	if err != nil {
		return Result{}, err
	}

	found := make(map[string]domain.Group, len(groups))
	for _, g := range groups {
		found[g.ID] = g
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return Result{}, domain.NewUnresolvedRecipients(missing)
	}

	var res Result
	for _, id := range ids {
		res.Targets = append(res.Targets, domain.TargetDescriptor{
			Kind:    domain.TargetGroup,
			Address: found[id].Address,
		})
	}
	if len(res.Targets) == 0 {
		return Result{}, domain.ErrNoValidRecipients
	}
	return res, nil
}

// normalize strips everything but digits (and a leading plus), applies
// the default country code to local 10/11-digit numbers and enforces
// the minimum-length acceptance rule: with a plus the value must be at
// least 13 characters, without one at least 12 digits.
func (r *Resolver) normalize(candidate string) (string, bool) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return "", false
	}
	hasPlus := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	for _, ch := range trimmed {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", false
	}

	if hasPlus {
		normalized := "+" + digits
		if len(normalized) < 13 {
			return "", false
		}
		return normalized, true
	}

	if len(digits) == 10 || len(digits) == 11 {
		normalized := "+" + r.defaultCountryCode + digits
		if len(normalized) < 13 {
			return "", false
		}
		return normalized, true
	}

	if len(digits) < 12 {
		return "", false
	}
	return digits, true
}

func splitCandidates(raw string) []string {
	return strings.FieldsFunc(raw, func(ch rune) bool {
		return ch == ',' || ch == ';' || ch == '\n' || ch == '\r'
	})
}
