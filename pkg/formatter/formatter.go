package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/output"
)

var (
	Bold    = color.New(color.Bold)
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed)
	Info    = color.New(color.FgCyan)
	Warning = color.New(color.FgYellow)
)

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	output.PrintSuccess(format, args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	output.PrintError(format, args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	output.PrintInfo(format, args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	output.PrintWarning(format, args...)
}

// now is swapped in tests
var now = time.Now

// Ago renders t relative to now, e.g. "5m ago".
func Ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now().Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// Truncate shortens s to at most length runes.
func Truncate(s string, length int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	r := []rune(s)
	return string(r[:length-1]) + "…"
}

// Pending marks rows that are still being sent.
func Pending(id string) string {
	if optimistic.IsPlaceholder(id) {
		return "(sending)"
	}
	return id
}

// Reactions renders reaction counts, e.g. "👍 2  ❤️ 1".
func Reactions(item api.FeedItem) string {
	counts := item.ReactionCounts()
	emojis := make([]string, 0, len(counts))
	for e := range counts {
		emojis = append(emojis, e)
	}
	sort.Strings(emojis)
	parts := make([]string, len(emojis))
	for i, e := range emojis {
		parts[i] = fmt.Sprintf("%s %d", e, counts[e])
	}
	return strings.Join(parts, "  ")
}

// FeedRows renders feed items for output.PrintList.
func FeedRows(items []api.FeedItem) (headers []string, rows [][]string) {
	headers = []string{"ID", "WHO", "WHAT", "WHERE", "REACTIONS", "COMMENTS", "WHEN"}
	for _, it := range items {
		where := ""
		if it.Place != nil {
			where = it.Place.Name
		}
		what := it.Kind
		if it.Kind == api.KindReview && it.Rating > 0 {
			what = fmt.Sprintf("review %s", strings.Repeat("★", it.Rating))
		}
		if it.Text != "" {
			what += ": " + Truncate(it.Text, 40)
		}
		rows = append(rows, []string{
			it.ID, it.Actor.Name(), what, where, Reactions(it),
			fmt.Sprintf("%d", it.CommentCount), Ago(it.CreatedAt),
		})
	}
	return headers, rows
}

// CommentRows renders comments.
func CommentRows(items []api.Comment) (headers []string, rows [][]string) {
	headers = []string{"ID", "AUTHOR", "COMMENT", "WHEN"}
	for _, c := range items {
		rows = append(rows, []string{Pending(c.ID), c.Author.Name(), Truncate(c.Body, 60), Ago(c.CreatedAt)})
	}
	return headers, rows
}

// ReviewRows renders reviews.
func ReviewRows(items []api.Review) (headers []string, rows [][]string) {
	headers = []string{"ID", "AUTHOR", "RATING", "REVIEW", "LIKES"}
	for _, r := range items {
		likes := fmt.Sprintf("%d", r.LikeCount)
		if r.Liked {
			likes += " ♥"
		}
		rows = append(rows, []string{r.ID, r.Author.Name(), strings.Repeat("★", r.Rating), Truncate(r.Body, 50), likes})
	}
	return headers, rows
}

// CheckinRows renders check-ins.
func CheckinRows(items []api.Checkin) (headers []string, rows [][]string) {
	headers = []string{"ID", "PLACE", "NOTE", "WHEN"}
	for _, c := range items {
		rows = append(rows, []string{c.ID, c.Place.Name, Truncate(c.Note, 50), Ago(c.CreatedAt)})
	}
	return headers, rows
}

// NotificationRows renders notifications, unread ones marked with a dot.
func NotificationRows(items []api.Notification) (headers []string, rows [][]string) {
	headers = []string{"", "ID", "MESSAGE", "WHEN"}
	for _, n := range items {
		mark := "•"
		if n.Read {
			mark = " "
		}
		rows = append(rows, []string{mark, n.ID, Truncate(n.Message, 60), Ago(n.CreatedAt)})
	}
	return headers, rows
}

// ConnectionRows renders followers or following.
func ConnectionRows(items []api.Connection) (headers []string, rows [][]string) {
	headers = []string{"ID", "USER", "FOLLOWING", "FOLLOWS YOU"}
	yes := func(b bool) string {
		if b {
			return "yes"
		}
		return ""
	}
	for _, c := range items {
		rows = append(rows, []string{c.User.ID, "@" + c.User.Username, yes(c.Following), yes(c.FollowsMe)})
	}
	return headers, rows
}

// ListRows renders place lists.
func ListRows(items []api.PlaceList) (headers []string, rows [][]string) {
	headers = []string{"ID", "NAME", "PLACES", "UPDATED"}
	for _, l := range items {
		rows = append(rows, []string{l.ID, l.Name, fmt.Sprintf("%d", l.PlaceCount), Ago(l.UpdatedAt)})
	}
	return headers, rows
}

// ConversationRows renders conversations.
func ConversationRows(items []api.Conversation) (headers []string, rows [][]string) {
	headers = []string{"ID", "TITLE", "PEOPLE", "LAST MESSAGE"}
	for _, c := range items {
		rows = append(rows, []string{c.ID, c.Title, fmt.Sprintf("%d", len(c.Participants)), Ago(c.LastMessageAt)})
	}
	return headers, rows
}

// MessageRows renders messages oldest first, the way a chat reads.
func MessageRows(items []api.Message) (headers []string, rows [][]string) {
	headers = []string{"ID", "FROM", "MESSAGE", "WHEN"}
	for i := len(items) - 1; i >= 0; i-- {
		m := items[i]
		body := m.Body
		if m.EditedAt != nil {
			body += " (edited)"
		}
		rows = append(rows, []string{Pending(m.ID), m.AuthorID, body, Ago(m.CreatedAt)})
	}
	return headers, rows
}
