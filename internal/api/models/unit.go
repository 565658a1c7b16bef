package models

// Unit is a single pipeline step. Exactly one of the kind selector foreign
// keys is expected to be set; it tells which runner executes the step.
type Unit struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	PipelineID uint `gorm:"index" json:"pipelineId"`
	// Unit executed before this one. Nil for the first step of a branch.
	ParentID *uint  `gorm:"index" json:"parentId,omitempty"`
	Name     string `json:"name"`

	// Kind selectors
	CommandID      *uint `json:"commandId,omitempty"`
	QueryQueueID   *uint `json:"queryQueueId,omitempty"`
	SftpDownloadID *uint `json:"sftpDownloadId,omitempty"`
	SftpUploadID   *uint `json:"sftpUploadId,omitempty"`
	ZipID          *uint `json:"zipId,omitempty"`
	UnzipID        *uint `json:"unzipId,omitempty"`
	CallPipelineID *uint `json:"callPipelineId,omitempty"`

	RetryCount      int     `json:"retryCount"`
	Timeout         int     `json:"timeout"` // in seconds
	ContinueOnError bool    `json:"continueOnError"`
	AbortOnError    bool    `json:"abortOnError"`
	Comment         *string `json:"comment,omitempty"`

	// Explicit grid coordinates, used to order siblings
	Xpos *float64 `json:"xpos,omitempty"`
	Ypos *float64 `json:"ypos,omitempty"`
}

// HasPosition reports whether both explicit coordinates are set
func (slf Unit) HasPosition() bool {
	return slf.Xpos != nil && slf.Ypos != nil
}
