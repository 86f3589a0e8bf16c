package service

import (
	"strings"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

// Directory answers roster questions: who is in which department, and
// what a chat id is called there. It is read-only after construction.
type Directory struct {
	members map[types.Department][]types.Member
}

func NewDirectory(roster map[types.Department][]types.Member) *Directory {
	d := &Directory{members: make(map[types.Department][]types.Member, len(roster))}
	for dept, ms := range roster {
		d.members[dept] = append([]types.Member(nil), ms...)
	}
	return d
}

// Members returns the chat ids of dept in roster order.
func (d *Directory) Members(dept types.Department) []int64 {
	out := make([]int64, 0, len(d.members[dept]))
	for _, m := range d.members[dept] {
		out = append(out, m.ChatID)
	}
	return out
}

func (d *Directory) Nickname(dept types.Department, chatID int64) (string, bool) {
	for _, m := range d.members[dept] {
		if m.ChatID == chatID && m.Nickname != "" {
			return m.Nickname, true
		}
	}
	return "", false
}

// Roles lists every department chatID belongs to, in chain order.
func (d *Directory) Roles(chatID int64) []types.Department {
	var out []types.Department
	for _, dept := range types.Departments {
		for _, m := range d.members[dept] {
			if m.ChatID == chatID {
				out = append(out, dept)
				break
			}
		}
	}
	return out
}

func (d *Directory) HasRole(chatID int64, dept types.Department) bool {
	for _, m := range d.members[dept] {
		if m.ChatID == chatID {
			return true
		}
	}
	return false
}

// ChatIDByNickname looks a nickname up within dept, ignoring a leading @
// and case.
func (d *Directory) ChatIDByNickname(dept types.Department, nickname string) (int64, bool) {
	want := normalizeNick(nickname)
	if want == "" {
		return 0, false
	}
	for _, m := range d.members[dept] {
		if normalizeNick(m.Nickname) == want {
			return m.ChatID, true
		}
	}
	return 0, false
}

// Allowed reports whether chatID appears anywhere in the roster.
func (d *Directory) Allowed(chatID int64) bool {
	return len(d.Roles(chatID)) > 0
}

// Actor resolves chatID to an Actor, taking the nickname from the first
// department that names it.
func (d *Directory) Actor(chatID int64) types.Actor {
	for _, dept := range types.Departments {
		if nick, ok := d.Nickname(dept, chatID); ok {
			return types.Actor{ID: chatID, Nickname: nick}
		}
	}
	return types.Actor{ID: chatID}
}

func normalizeNick(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
