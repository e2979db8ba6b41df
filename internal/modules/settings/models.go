package settings

// Setting keys. They match the storage keys of the desktop client so an
// exported profile can be imported unchanged.
const (
	KeyMetaInfo        = "meta-info"
	KeyFilterSchemas   = "filter-schema"
	KeyIndicatorGroups = "financial-report-data-indicator-groups"
	KeyFollowed        = "followed-fri-stock-map"
	KeyFavorites       = "favorite-stock-list"
)

// SettingDescriptions documents every known key.
var SettingDescriptions = map[string]string{
	KeyMetaInfo:        "Dataset update times and the leading indicator sync checkpoint",
	KeyFilterSchemas:   "Saved screening filters with their compiled programs",
	KeyIndicatorGroups: "Report indicator groups shown on the stock detail page",
	KeyFollowed:        "Report indicators followed per stock, with a note each",
	KeyFavorites:       "Favorite stock ids in insertion order",
}

// FollowedIndicator is a report indicator pinned on one stock.
type FollowedIndicator struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
