package imap

import "strings"

const (
	unknownSender = "Unknown Sender"
	noSubject     = "No Subject"
)

func formatSender(name, address string) string {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)

	switch {
	case name != "" && address != "":
		return name + " <" + address + ">"
	case address != "":
		return address
	case name != "":
		return name
	default:
		return unknownSender
	}
}

func formatSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return noSubject
	}
	return subject
}
