package notification

// Storage interface for notification data persistence
type Storage interface {
	// Subscription methods
	AddSubscription(userID string, sub Subscription) (Subscription, error)
	GetSubscriptions(userID string) ([]Subscription, error)
	GetAllSubscriptions() ([]Subscription, error)
	DeactivateSubscription(userID string, endpoint string) error

	// Preference methods
	GetPreferences(userID string) (Preferences, error)
	UpdatePreferences(userID string, prefs Preferences) error

	// History methods
	AddHistory(userID string, entry History) error
	GetHistory(userID string, limit, offset int, filters map[string]string) ([]History, int, error)
	RotateHistory(userID string, maxEntries int) error
	UserIDs() ([]string, error)
}
