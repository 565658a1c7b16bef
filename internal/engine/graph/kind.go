package graph

import (
	"dashboard/internal/api/models"
	"fmt"
	"strings"
)

type KindName string

const (
	KindCommand      KindName = "command"
	KindQueryQueue   KindName = "query_queue"
	KindSftpDownload KindName = "sftp_download"
	KindSftpUpload   KindName = "sftp_upload"
	KindZip          KindName = "zip"
	KindUnzip        KindName = "unzip"
	KindPipelineCall KindName = "pipeline_call"
	KindUnknown      KindName = "unknown"
)

var kindTitles = map[KindName]string{
	KindCommand:      "Command",
	KindQueryQueue:   "Query queue",
	KindSftpDownload: "SFTP download",
	KindSftpUpload:   "SFTP upload",
	KindZip:          "Zip",
	KindUnzip:        "Unzip",
	KindPipelineCall: "Pipeline call",
	KindUnknown:      "Unknown",
}

// Title is the human readable name of the kind
func (k KindName) Title() string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return string(k)
}

// Kind is the runner type of a unit. The concrete types below are the only
// implementations; switch on them to reach the referenced record.
type Kind interface {
	Name() KindName
	// RefID is the id of the record the runner works on. Zero for Unknown.
	RefID() uint
	isKind()
}

type Command struct{ ID uint }
type QueryQueue struct{ ID uint }
type SftpDownload struct{ ID uint }
type SftpUpload struct{ ID uint }
type Zip struct{ ID uint }
type Unzip struct{ ID uint }
type PipelineCall struct{ PipelineID uint }

// Unknown is used when no selector, or more than one, is set on the unit.
type Unknown struct {
	Candidates []KindName
}

func (Command) Name() KindName      { return KindCommand }
func (QueryQueue) Name() KindName   { return KindQueryQueue }
func (SftpDownload) Name() KindName { return KindSftpDownload }
func (SftpUpload) Name() KindName   { return KindSftpUpload }
func (Zip) Name() KindName          { return KindZip }
func (Unzip) Name() KindName        { return KindUnzip }
func (PipelineCall) Name() KindName { return KindPipelineCall }
func (Unknown) Name() KindName      { return KindUnknown }

func (k Command) RefID() uint      { return k.ID }
func (k QueryQueue) RefID() uint   { return k.ID }
func (k SftpDownload) RefID() uint { return k.ID }
func (k SftpUpload) RefID() uint   { return k.ID }
func (k Zip) RefID() uint          { return k.ID }
func (k Unzip) RefID() uint        { return k.ID }
func (k PipelineCall) RefID() uint { return k.PipelineID }
func (Unknown) RefID() uint        { return 0 }

func (Command) isKind()      {}
func (QueryQueue) isKind()   {}
func (SftpDownload) isKind() {}
func (SftpUpload) isKind()   {}
func (Zip) isKind()          {}
func (Unzip) isKind()        {}
func (PipelineCall) isKind() {}
func (Unknown) isKind()      {}

// ResolveKind reads the kind selectors of a unit once. The second return value
// is false when the unit does not have exactly one selector.
func ResolveKind(u models.Unit) (Kind, bool) {
	var found []Kind
	if u.CommandID != nil {
		found = append(found, Command{ID: *u.CommandID})
	}
	if u.QueryQueueID != nil {
		found = append(found, QueryQueue{ID: *u.QueryQueueID})
	}
	if u.SftpDownloadID != nil {
		found = append(found, SftpDownload{ID: *u.SftpDownloadID})
	}
	if u.SftpUploadID != nil {
		found = append(found, SftpUpload{ID: *u.SftpUploadID})
	}
	if u.ZipID != nil {
		found = append(found, Zip{ID: *u.ZipID})
	}
	if u.UnzipID != nil {
		found = append(found, Unzip{ID: *u.UnzipID})
	}
	if u.CallPipelineID != nil {
		found = append(found, PipelineCall{PipelineID: *u.CallPipelineID})
	}

	if len(found) == 1 {
		return found[0], true
	}
	unknown := Unknown{}
	for _, k := range found {
		unknown.Candidates = append(unknown.Candidates, k.Name())
	}
	return unknown, false
}

// Label returns the display label of a unit
func Label(u models.Unit, k Kind) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s #%d", k.Name().Title(), u.ID)
}
