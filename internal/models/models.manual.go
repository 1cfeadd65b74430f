// FilePath: internal/models/models.manual.go
package models

const (
	ManualTypeText = "text"
	ManualTypeFile = "file"
)

// ExtractedData holds nutrient values read from a lab report
type ExtractedData struct {
	P *float64 `json:"P,omitempty" bson:"P,omitempty" validate:"omitempty,gte=0,lte=100"`
	N *float64 `json:"N,omitempty" bson:"N,omitempty" validate:"omitempty,gte=0,lte=100"`
	K *float64 `json:"K,omitempty" bson:"K,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Empty reports whether no value was extracted
func (e *ExtractedData) Empty() bool {
	return e == nil || (e.P == nil && e.N == nil && e.K == nil)
}

// Attachment points at the stored payload of a file submission
type Attachment struct {
	Key      string `json:"key" bson:"key"`
	Size     int64  `json:"size" bson:"size"`
	MimeType string `json:"mimeType" bson:"mimeType"`
}

// ManualData is a manual submission, either free text or an uploaded file
type ManualData struct {
	Record        `bson:",inline"`
	Type          string         `json:"type" bson:"type"`
	Content       string         `json:"content" bson:"content"`
	FileName      string         `json:"fileName,omitempty" bson:"fileName,omitempty"`
	FileType      string         `json:"fileType,omitempty" bson:"fileType,omitempty"`
	ExtractedData *ExtractedData `json:"extractedData,omitempty" bson:"extractedData,omitempty"`
	AIAnalysis    string         `json:"aiAnalysis,omitempty" bson:"aiAnalysis,omitempty"`
	Attachment    *Attachment    `json:"attachment,omitempty" bson:"attachment,omitempty"`
}

// HasExtracted reports whether the submission carries extracted values
func (m *ManualData) HasExtracted() bool {
	return !m.ExtractedData.Empty()
}

// Snapshot returns the P/N/K view of the extracted values
func (m *ManualData) Snapshot() NutrientSnapshot {
	snap := NutrientSnapshot{Timestamp: m.Timestamp}
	if m.ExtractedData != nil {
		snap.P, snap.N, snap.K = m.ExtractedData.P, m.ExtractedData.N, m.ExtractedData.K
	}
	return snap
}

// ManualInput is the body of a manual submission. For file submissions content
// holds the payload as base64 or a data URL.
type ManualInput struct {
	Type          string         `json:"type" validate:"required,oneof=text file"`
	Content       string         `json:"content" validate:"required"`
	FileName      string         `json:"fileName"`
	FileType      string         `json:"fileType"`
	ExtractedData *ExtractedData `json:"extractedData"`
	AIAnalysis    string         `json:"aiAnalysis"`
}

// ToManualData validates the submission and builds the record to persist
func (in *ManualInput) ToManualData() (*ManualData, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	md := &ManualData{
		Type:       in.Type,
		Content:    in.Content,
		FileName:   in.FileName,
		FileType:   in.FileType,
		AIAnalysis: in.AIAnalysis,
	}
	if !in.ExtractedData.Empty() {
		md.ExtractedData = in.ExtractedData
	}
	return md, nil
}
