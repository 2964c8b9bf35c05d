package flagstore

// MembershipResult classifies a user for one segment reference.
type MembershipResult int

const (
	// MembershipUnknown means the big segment data says nothing about the
	// user for that segment; the segment's own rules decide.
	MembershipUnknown MembershipResult = iota
	MembershipIncluded
	MembershipExcluded
)

func (r MembershipResult) String() string {
	switch r {
	case MembershipIncluded:
		return "included"
	case MembershipExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Membership is one user's big segment state.
type Membership interface {
	CheckMembership(segmentRef string) MembershipResult
}

type membership struct {
	included map[string]struct{}
	excluded map[string]struct{}
}

// NewMembership builds a Membership from the refs a user is explicitly
// included in and excluded from. Either list may be nil. A ref present in
// both is excluded.
func NewMembership(included, excluded []string) Membership {
	return membership{included: toSet(included), excluded: toSet(excluded)}
}

func toSet(refs []string) map[string]struct{} {
	if len(refs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		set[r] = struct{}{}
	}
	return set
}

func (m membership) CheckMembership(segmentRef string) MembershipResult {
	if _, ok := m.excluded[segmentRef]; ok {
		return MembershipExcluded
	}
	if _, ok := m.included[segmentRef]; ok {
		return MembershipIncluded
	}
	return MembershipUnknown
}
