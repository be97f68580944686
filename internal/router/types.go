// Package router implements the content routing decision engine: persisted
// routing rules are evaluated against incoming watchlist items and the
// resulting decisions are applied to Radarr/Sonarr instances.
package router

import (
	"context"
	"encoding/json"
)

// ContentType identifies the kind of media being routed.
type ContentType string

const (
	ContentTypeMovie ContentType = "movie"
	ContentTypeShow  ContentType = "show"
)

// TargetType identifies which backend a rule or decision routes to.
type TargetType string

const (
	TargetRadarr TargetType = "radarr"
	TargetSonarr TargetType = "sonarr"
)

// TargetForContent returns the backend that handles the given content type.
func TargetForContent(ct ContentType) TargetType {
	if ct == ContentTypeShow {
		return TargetSonarr
	}
	return TargetRadarr
}

// Rating holds one source's rating for an item, normalized to a 0-10 scale.
// Votes is only populated for sources that report it (IMDb).
type Rating struct {
	Value float64 `json:"value"`
	Votes int     `json:"votes,omitempty"`
}

// Ratings holds per-source ratings for an item. Nil pointers mean the source
// has no rating for this item.
type Ratings struct {
	IMDB       *Rating `json:"imdb,omitempty"`
	RTCritic   *Rating `json:"rtCritic,omitempty"`
	RTAudience *Rating `json:"rtAudience,omitempty"`
	TMDB       *Rating `json:"tmdb,omitempty"`
}

// Season describes one season present in a show's metadata.
type Season struct {
	Number           int `json:"number"`
	EpisodeFileCount int `json:"episodeFileCount"`
}

// ContentItem is a movie or show candidate being routed. It is immutable for
// the duration of one evaluation pass; evaluators must never modify it.
type ContentItem struct {
	Title   string      `json:"title"`
	Type    ContentType `json:"type"`
	GUIDs   []string    `json:"guids,omitempty"`
	Genres  []string    `json:"genres,omitempty"`
	Year    int         `json:"year,omitempty"`
	Seasons []Season    `json:"seasons,omitempty"`
	Ratings *Ratings    `json:"ratings,omitempty"`
}

// SeasonNumbers returns the distinct season numbers present in the item's
// metadata.
func (c *ContentItem) SeasonNumbers() []int {
	if len(c.Seasons) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(c.Seasons))
	numbers := make([]int, 0, len(c.Seasons))
	for _, s := range c.Seasons {
		if !seen[s.Number] {
			seen[s.Number] = true
			numbers = append(numbers, s.Number)
		}
	}
	return numbers
}

// GUID returns the value of the item's external identifier with the given
// scheme, e.g. GUID("tmdb") on ["tmdb://693134"] returns "693134".
func (c *ContentItem) GUID(scheme string) string {
	prefix := scheme + "://"
	for _, g := range c.GUIDs {
		if len(g) > len(prefix) && g[:len(prefix)] == prefix {
			return g[len(prefix):]
		}
	}
	return ""
}

// RoutingContext carries per-request facts that are not stored on the item.
// A zero UserID with an empty UserName means the request has no user identity.
type RoutingContext struct {
	UserID      int64       `json:"userId,omitempty"`
	UserName    string      `json:"userName,omitempty"`
	ItemKey     string      `json:"itemKey"`
	ContentType ContentType `json:"contentType"`
	Syncing     bool        `json:"syncing,omitempty"`
}

// HasUser reports whether the context carries a user identity.
func (r *RoutingContext) HasUser() bool {
	return r.UserID != 0 || r.UserName != ""
}

// DefaultRuleOrder is the routing weight assigned to rules that do not set
// an explicit order.
const DefaultRuleOrder = 50

// RouterRule is a persisted, user-authored routing rule. The engine only
// reads enabled rules matching an evaluator's type and the item's target
// backend; rule lifecycle is owned by the admin API.
type RouterRule struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	Target           TargetType      `json:"target"`
	InstanceID       int64           `json:"instanceId"`
	QualityProfile   string          `json:"qualityProfile,omitempty"`
	RootFolder       string          `json:"rootFolder,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	Enabled          bool            `json:"enabled"`
	Order            int             `json:"order"`
	Criteria         json.RawMessage `json:"criteria"`
	SearchOnAdd      *bool           `json:"searchOnAdd,omitempty"`
	SeasonMonitoring string          `json:"seasonMonitoring,omitempty"`
	SeriesType       string          `json:"seriesType,omitempty"`
}

// Decision returns the RoutingDecision produced when this rule matches.
func (r *RouterRule) Decision() RoutingDecision {
	return RoutingDecision{
		RuleID:           r.ID,
		RuleName:         r.Name,
		InstanceID:       r.InstanceID,
		QualityProfile:   r.QualityProfile,
		RootFolder:       r.RootFolder,
		Tags:             r.Tags,
		Priority:         r.Order,
		SearchOnAdd:      r.SearchOnAdd,
		SeasonMonitoring: r.SeasonMonitoring,
		SeriesType:       r.SeriesType,
	}
}

// RoutingDecision is one evaluator's proposed routing outcome for one
// matching rule. Decisions are ephemeral and never persisted.
type RoutingDecision struct {
	RuleID           int64      `json:"ruleId,omitempty"`
	RuleName         string     `json:"ruleName,omitempty"`
	InstanceID       int64      `json:"instanceId"`
	QualityProfile   string     `json:"qualityProfile,omitempty"`
	RootFolder       string     `json:"rootFolder,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Priority         int        `json:"priority"`
	SearchOnAdd      *bool      `json:"searchOnAdd,omitempty"`
	SeasonMonitoring string     `json:"seasonMonitoring,omitempty"`
	SeriesType       string     `json:"seriesType,omitempty"`
	Fallback         bool       `json:"fallback,omitempty"`
	Target           TargetType `json:"target,omitempty"`
}

// RouteOptions carries the per-decision overrides passed to a routing target.
type RouteOptions struct {
	Syncing          bool
	RootFolder       string
	QualityProfile   string
	Tags             []string
	SearchOnAdd      *bool
	SeasonMonitoring string
	SeriesType       string
}

// RuleStore provides read access to persisted routing rules. Implementations
// must be safe for concurrent use; the engine only ever reads.
type RuleStore interface {
	GetRouterRulesByType(ctx context.Context, ruleType string) ([]RouterRule, error)
}

// MovieTarget applies a routing decision to a Radarr instance.
type MovieTarget interface {
	RouteMovie(ctx context.Context, item *ContentItem, key string, instanceID int64, opts RouteOptions) error
}

// SeriesTarget applies a routing decision to a Sonarr instance.
type SeriesTarget interface {
	RouteSeries(ctx context.Context, item *ContentItem, key string, instanceID int64, opts RouteOptions) error
}

// InstanceResolver supplies the default instance used when no rule matches
// an item.
type InstanceResolver interface {
	DefaultInstance(ctx context.Context, target TargetType) (int64, error)
}
