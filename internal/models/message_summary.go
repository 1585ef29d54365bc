package models

import "time"

// MessageSummary is what the notifier knows about a new message. It is not retained
// after dispatch.
type MessageSummary struct {
	UID     uint32
	From    string
	Subject string
	Date    time.Time
}

// FolderStatus is the result of selecting the monitored folder
type FolderStatus struct {
	Name        string
	Messages    uint32
	UIDValidity uint32
	UIDNext     uint32
}
