package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"video-transcriber-go/internal/caption"
	"video-transcriber-go/internal/types"
)

// Writer exports finished pipeline results as xlsx workbooks, one file per
// request, under Dir. Export is best effort; the pipeline logs and ignores
// its errors.
type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Export writes a workbook with a Transcript sheet, a Captions sheet (when
// caption lines were produced) and an Analysis sheet (when analysis ran).
func (w *Writer) Export(req types.TranscriptionRequest, res *types.PipelineResult, lines []caption.Line) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("report dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const transcriptSheet = "Transcript"
	f.SetSheetName(f.GetSheetName(0), transcriptSheet)

	rows := [][]interface{}{
		{"URL", res.OriginalURL},
		{"Time range", res.TimeRange},
		{"Download seconds", res.DownloadSeconds},
		{"Transcription seconds", res.TranscriptionSeconds},
		{"Analysis seconds", res.AnalysisSeconds},
		{"Total seconds", res.TotalSeconds},
	}
	if res.Transcription != nil {
		rows = append(rows, []interface{}{"Text", *res.Transcription})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(transcriptSheet, cell, &row); err != nil {
			return fmt.Errorf("transcript sheet: %w", err)
		}
	}

	if len(lines) > 0 {
		const sheet = "Captions"
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		header := []interface{}{"Index", "Start", "End", "Text"}
		_ = f.SetSheetRow(sheet, "A1", &header)
		for i, l := range lines {
			row := []interface{}{l.Index, caption.FormatTimestamp(l.Start), caption.FormatTimestamp(l.End), l.Text}
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("captions sheet: %w", err)
			}
		}
	}

	if res.Analysis != nil {
		const sheet = "Analysis"
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		rows := [][]interface{}{
			{"sentiment", fragmentCell(res.Analysis.Sentiment)},
			{"pos_counts", fragmentCell(res.Analysis.POSCounts)},
			{"word_frequency", fragmentCell(res.Analysis.WordFrequency)},
			{"topic", fragmentCell(res.Analysis.Topic)},
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("analysis sheet: %w", err)
			}
		}
	}

	name := fmt.Sprintf("transcription-%s.xlsx", time.Now().UTC().Format("20060102-150405.000"))
	return f.SaveAs(filepath.Join(w.Dir, name))
}

func fragmentCell(frag map[string]interface{}) string {
	if frag == nil {
		return ""
	}
	return fmt.Sprintf("%v", frag)
}
