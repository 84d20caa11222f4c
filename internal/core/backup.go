package core

import (
	"time"
)

// Backup is the whole-dataset export document.
type Backup struct {
	Properties []Property `json:"properties"`
	Expenses   []Expense  `json:"expenses"`
	Settings   Settings   `json:"settings"`
	ExportDate time.Time  `json:"exportDate"`
}

// ImportPayload is a backup document where every section is optional. A nil
// section leaves the corresponding collection untouched.
type ImportPayload struct {
	Properties *[]Property `json:"properties"`
	Expenses   *[]Expense  `json:"expenses"`
	Settings   *Settings   `json:"settings"`
}

// Payload converts an export back into an import covering every section.
func (b Backup) Payload() ImportPayload {
	props := append([]Property{}, b.Properties...)
	exps := append([]Expense{}, b.Expenses...)
	settings := b.Settings
	return ImportPayload{Properties: &props, Expenses: &exps, Settings: &settings}
}

// BackupFileName is the download name for an export taken at t.
func BackupFileName(t time.Time) string {
	return "backup_" + t.Format(dateLayout) + ".json"
}
