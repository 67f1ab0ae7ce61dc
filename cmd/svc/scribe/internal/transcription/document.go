package transcription

import (
	"encoding/json"
	"strings"

	"github.com/voicescribe/backend/libs/errors"
)

// transcriptDocument is the JSON document Transcribe writes to the output
// location.
type transcriptDocument struct {
	JobName string `json:"jobName"`
	Status  string `json:"status"`
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// parseTranscriptDocument extracts the transcript text from an output
// document, joining multiple transcript segments with a space.
func parseTranscriptDocument(data []byte) (string, error) {
	var doc transcriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", errors.Annotate(err, "transcript document")
	}
	parts := make([]string, 0, len(doc.Results.Transcripts))
	for _, tr := range doc.Results.Transcripts {
		if tr.Transcript != "" {
			parts = append(parts, tr.Transcript)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("transcription: document contains no transcript")
	}
	return strings.Join(parts, " "), nil
}
