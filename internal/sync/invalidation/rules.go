package invalidation

// Context carries the scope identifiers a mutation ran with, keyed by
// placeholder name (eventId, teamId, userId).
type Context map[string]string

// Pattern is a key prefix whose "{placeholder}" segments are expanded from a
// mutation context at resolve time. When a placeholder is missing from the
// context, the prefix is truncated at that segment: matching widens to the
// whole sub-family, so a missing identifier can only over-invalidate, never
// miss.
type Pattern []string

// Rule declares which cache-key families a mutation disturbs. Rules are
// conservative: every key whose resource state could have changed is listed,
// even at the cost of extra refetches.
type Rule struct {
	Trigger string
	Affects []Pattern
}

// DefaultRules is the static rule table for the five resource families:
// events, teams, submissions, judges, registrations/notifications.
func DefaultRules() []Rule {
	return []Rule{
		{
			Trigger: "createEvent",
			Affects: []Pattern{
				{"events", "list"},
				{"events", "my"},
			},
		},
		{
			Trigger: "updateEvent",
			Affects: []Pattern{
				{"events", "detail", "{eventId}"},
				{"events", "list"},
				{"events", "my"},
			},
		},
		{
			Trigger: "createTeam",
			Affects: []Pattern{
				{"teams", "byEvent", "{eventId}"},
				{"teams", "seekers", "{eventId}"},
			},
		},
		{
			Trigger: "updateTeam",
			Affects: []Pattern{
				{"teams", "detail", "{teamId}"},
				{"teams", "byEvent", "{eventId}"},
			},
		},
		{
			Trigger: "joinTeam",
			Affects: []Pattern{
				{"teams", "detail", "{teamId}"},
				{"teams", "byEvent", "{eventId}"},
				{"teams", "seekers", "{eventId}"},
				{"teams", "my"},
			},
		},
		{
			Trigger: "leaveTeam",
			Affects: []Pattern{
				{"teams", "detail", "{teamId}"},
				{"teams", "byEvent", "{eventId}"},
				{"teams", "seekers", "{eventId}"},
				{"teams", "my"},
			},
		},
		{
			Trigger: "createSubmission",
			Affects: []Pattern{
				{"submissions", "byEvent", "{eventId}"},
				{"submissions", "byTeam", "{teamId}"},
			},
		},
		{
			Trigger: "updateSubmission",
			Affects: []Pattern{
				{"submissions", "byEvent", "{eventId}"},
				{"submissions", "byTeam", "{teamId}"},
			},
		},
		{
			Trigger: "scoreSubmission",
			Affects: []Pattern{
				{"submissions", "byEvent", "{eventId}"},
				{"submissions", "byTeam", "{teamId}"},
				{"judges", "byEvent", "{eventId}"},
			},
		},
		{
			Trigger: "addJudge",
			Affects: []Pattern{
				{"judges", "byEvent", "{eventId}"},
				{"judges", "permissions", "{eventId}"},
			},
		},
		{
			Trigger: "removeJudge",
			Affects: []Pattern{
				{"judges", "byEvent", "{eventId}"},
				{"judges", "permissions", "{eventId}", "{userId}"},
			},
		},
		{
			Trigger: "registerForEvent",
			Affects: []Pattern{
				{"registrations", "byEvent", "{eventId}"},
				{"events", "detail", "{eventId}"},
				{"events", "my"},
			},
		},
		{
			Trigger: "cancelRegistration",
			Affects: []Pattern{
				{"registrations", "byEvent", "{eventId}"},
				{"events", "detail", "{eventId}"},
				{"events", "my"},
			},
		},
		{
			Trigger: "markNotificationRead",
			Affects: []Pattern{
				{"notifications"},
			},
		},
		// Auth events sweep every user-scoped family.
		{
			Trigger: "signIn",
			Affects: authScopedPatterns(),
		},
		{
			Trigger: "signOut",
			Affects: authScopedPatterns(),
		},
	}
}

func authScopedPatterns() []Pattern {
	return []Pattern{
		{"events", "my"},
		{"user"},
		{"teams", "my"},
		{"notifications"},
		{"registrations"},
	}
}
