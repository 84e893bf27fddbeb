package cases

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
)

// Platform limits for autocomplete choices.
const (
	maxSuggestions   = 25
	maxSuggestionLen = 100
)

// Suggestion is one autocomplete choice. Value is what gets submitted.
type Suggestion struct {
	Name  string
	Value string
}

// Autocomplete suggests case ranges from the guild's cases.
type Autocomplete struct {
	cases moderation.CaseRepository
}

func NewAutocomplete(cases moderation.CaseRepository) *Autocomplete {
	return &Autocomplete{cases: cases}
}

var latestCounts = []int64{2, 5, 10, MaxRangeSize}

// Suggest returns choices for the partially typed range.
func (a *Autocomplete) Suggest(ctx context.Context, guildID snowflake.ID, partial string) ([]Suggestion, error) {
	in := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(partial), " ", ""))

	var out []Suggestion
	var err error
	switch {
	case in == "":
		out, err = a.recent(ctx, guildID)
	case strings.HasPrefix("latest", in) || strings.HasPrefix(in, "latest"):
		out, err = a.latest(ctx, guildID, in)
	case strings.Contains(in, "-"):
		out, err = a.ranges(ctx, guildID, in)
	default:
		out, err = a.singles(ctx, guildID, in)
	}
	if err != nil {
		return nil, err
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out, nil
}

func (a *Autocomplete) recent(ctx context.Context, guildID snowflake.ID) ([]Suggestion, error) {
	recent, err := a.cases.FindRecent(ctx, guildID, maxSuggestions-1)
	if err != nil {
		return nil, fmt.Errorf("find recent cases: %w", err)
	}
	if len(recent) == 0 {
		return nil, nil
	}
	out := []Suggestion{{Name: "latest: " + describe(recent[0]), Value: "latest"}}
	for _, c := range recent {
		out = append(out, single(c))
	}
	return out, nil
}

func (a *Autocomplete) latest(ctx context.Context, guildID snowflake.ID, in string) ([]Suggestion, error) {
	maxID, err := a.cases.MaxCaseID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("find latest case: %w", err)
	}
	if maxID == 0 {
		return nil, nil
	}

	var out []Suggestion
	if n, ok := strings.CutPrefix(in, "latest~"); ok && n != "" {
		if count, err := strconv.ParseInt(n, 10, 64); err == nil && count >= 1 && count <= MaxRangeSize {
			out = append(out, latestSuggestion(count, maxID))
		}
	}
	if strings.HasPrefix("latest", in) {
		out = append(out, Suggestion{Name: fmt.Sprintf("latest (case #%d)", maxID), Value: "latest"})
	}
	for _, count := range latestCounts {
		value := fmt.Sprintf("latest~%d", count)
		if strings.HasPrefix(value, in) && !contains(out, value) {
			out = append(out, latestSuggestion(count, maxID))
		}
	}
	return out, nil
}

func latestSuggestion(count, maxID int64) Suggestion {
	start := max(maxID-count+1, 1)
	return Suggestion{
		Name:  fmt.Sprintf("latest~%d (cases #%d-#%d)", count, start, maxID),
		Value: fmt.Sprintf("latest~%d", count),
	}
}

func (a *Autocomplete) ranges(ctx context.Context, guildID snowflake.ID, in string) ([]Suggestion, error) {
	from, to, _ := strings.Cut(in, "-")
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 1 {
		return nil, nil
	}
	maxID, err := a.cases.MaxCaseID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("find latest case: %w", err)
	}
	if start > maxID {
		return nil, nil
	}
	last := min(start+MaxRangeSize-1, maxID)

	var out []Suggestion
	if to == "" {
		if maxID-start+1 <= MaxRangeSize {
			out = append(out, Suggestion{
				Name:  fmt.Sprintf("%d- (cases #%d-#%d)", start, start, maxID),
				Value: fmt.Sprintf("%d-", start),
			})
		}
	}
	for end := last; end > start; end-- {
		value := fmt.Sprintf("%d-%d", start, end)
		if !strings.HasPrefix(strconv.FormatInt(end, 10), to) {
			continue
		}
		out = append(out, Suggestion{
			Name:  fmt.Sprintf("%s (%d cases)", value, end-start+1),
			Value: value,
		})
	}
	return out, nil
}

func (a *Autocomplete) singles(ctx context.Context, guildID snowflake.ID, in string) ([]Suggestion, error) {
	if _, err := strconv.ParseUint(in, 10, 64); err != nil {
		return nil, nil
	}
	matches, err := a.cases.SearchByIDPrefix(ctx, guildID, in, maxSuggestions)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	out := make([]Suggestion, 0, len(matches))
	for _, c := range matches {
		out = append(out, single(c))
	}
	return out, nil
}

func single(c moderation.Case) Suggestion {
	return Suggestion{Name: describe(c), Value: strconv.FormatInt(c.CaseID, 10)}
}

// describe renders a case as "#12 Ban - user: reason", cut to the platform
// limit.
func describe(c moderation.Case) string {
	s := fmt.Sprintf("#%d %s", c.CaseID, c.Action.Title())
	if c.TargetTag != "" {
		s += " - " + c.TargetTag
	}
	if c.Reason != "" {
		s += ": " + c.Reason
	}
	return truncate(s, maxSuggestionLen)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func contains(s []Suggestion, value string) bool {
	for _, v := range s {
		if v.Value == value {
			return true
		}
	}
	return false
}
