package domain

// Notifier delivers backup outcome notifications. Best effort only.
type Notifier interface {
	Notify(message string) error
}
