package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"waveline.io/courier/internal/domain"
)

// ordinal renders a trending rank as 1st, 2nd, 3rd, 4th and so on.
// The teens always take "th".
func ordinal(rank int) string {
	suffix := "th"
	if rank%100 < 11 || rank%100 > 13 {
		switch rank % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(rank) + suffix
}

// formatCount renders a milestone value with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// actorPhrase renders the acting users of a multi-actor notification:
// one actor reads as their name, more read as "X and N others".
func actorPhrase(name string, total int) string {
	if total <= 1 {
		return name
	}
	noun := "others"
	if total == 2 {
		noun = "other"
	}
	return fmt.Sprintf("%s and %d %s", name, total-1, noun)
}

// possessive picks the pronoun for an entity owned by ownerID when speaking
// to receiverID about an action by actorID. The owner hearing about their own
// entity gets "your"; an actor acting on their own entity reads as "their";
// anyone else is named.
func possessive(ownerID, receiverID, actorID int64, ownerName string) string {
	switch {
	case ownerID == receiverID:
		return "your"
	case ownerID == actorID:
		return "their"
	default:
		return ownerName + "'s"
	}
}

// entityNoun lowercases the entity type for message prose.
func entityNoun(t domain.EntityType) string {
	return string(t)
}
