package orchestrator

import (
	"encoding/json"
	"fmt"
)

// Request is the wire-level body of POST /v1/ai. Payload shape depends on
// the action discriminator.
type Request struct {
	Action            string          `json:"action"`
	Payload           json.RawMessage `json:"payload"`
	Prompt            string          `json:"prompt"`
	SystemInstruction string          `json:"systemInstruction"`
	Model             string          `json:"model"`
	Query             string          `json:"query"`
	Location          *Location       `json:"location"`
	UserID            string          `json:"userId"`
}

// Location is carried for explore requests. The provider resolves
// geography through its maps tool; the gateway only passes it through.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Action names as they appear on the wire.
const (
	ActionTransmute = "transmute"
	ActionChat      = "chat"
	ActionExplore   = "explore"
	ActionRecommend = "recommend"
)

// Action is the closed set of operations the gateway performs. Classify
// maps every request onto exactly one member; the dispatch switch in
// Handle is exhaustive over these types.
type Action interface {
	isAction()
}

// TransmuteAction converts lesson content into one of the mentor's
// presentation modes.
type TransmuteAction struct {
	Content string
	Mode    string
	Title   string
}

// ChatAction is the open-ended default: a free prompt with optional
// model and system-instruction overrides.
type ChatAction struct {
	Prompt            string
	Model             string
	SystemInstruction string
}

// ExploreAction is a grounded, time/location-sensitive query. Never
// cached, rewards XP.
type ExploreAction struct {
	Query string
}

// RecommendAction asks for a schema-constrained module recommendation
// from the user's completed lessons. Never touches cache or reward.
type RecommendAction struct {
	CompletedLessons []string
}

func (TransmuteAction) isAction() {}
func (ChatAction) isAction()      {}
func (ExploreAction) isAction()   {}
func (RecommendAction) isAction() {}

// Classify parses the request into a typed action. An absent or
// unrecognized action falls through to open chat.
func Classify(req Request) (Action, error) {
	switch req.Action {
	case ActionTransmute:
		var p struct {
			Content string `json:"content"`
			Mode    string `json:"mode"`
			Title   string `json:"title"`
		}
		if len(req.Payload) == 0 {
			return nil, fmt.Errorf("transmute: payload is required")
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, fmt.Errorf("transmute: invalid payload: %w", err)
		}
		return TransmuteAction{Content: p.Content, Mode: p.Mode, Title: p.Title}, nil

	case ActionExplore:
		query := req.Query
		if query == "" {
			query = req.Prompt
		}
		if query == "" {
			query = defaultExploreQuery
		}
		return ExploreAction{Query: query}, nil

	case ActionRecommend:
		var p struct {
			CompletedLessons []string `json:"completedLessons"`
		}
		if len(req.Payload) == 0 {
			return nil, fmt.Errorf("recommend: payload is required")
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, fmt.Errorf("recommend: invalid payload: %w", err)
		}
		return RecommendAction{CompletedLessons: p.CompletedLessons}, nil

	default:
		return ChatAction{
			Prompt:            req.Prompt,
			Model:             req.Model,
			SystemInstruction: req.SystemInstruction,
		}, nil
	}
}

// cacheableAction reports whether responses for this action may be served
// from and written to the cache. Explore is excluded because results are
// time/location-sensitive and a stale hit would shortcut the reward;
// recommend is excluded because its schema path bypasses response shaping
// entirely. An unrecognized action string is treated as chat for dispatch
// but is not cached.
func cacheableAction(action string) bool {
	return action == ActionTransmute || action == ActionChat || action == ""
}

// actionType is the tag persisted with a cache entry.
func actionType(action string) string {
	if action == "" {
		return ActionChat
	}
	return action
}
