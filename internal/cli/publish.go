package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/apresai/briefcast/internal/assembly"
	"github.com/apresai/briefcast/internal/pipeline"
	"github.com/apresai/briefcast/internal/publish"
	"github.com/apresai/briefcast/internal/script"
)

var flagPublishDate string

var publishCmd = &cobra.Command{
	Use:   "publish <mp3-file>",
	Short: "Publish an already rendered episode to the feed",
	Long:  "Add an MP3 to feed.xml, uploading it (and its transcript) to S3 and recording it in DynamoDB when those are configured. The transcript and date are taken from the companion <prefix>-YYYY-MM-DD.txt.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&flagPublishDate, "date", "", "Episode date (YYYY-MM-DD, default from the file name)")
}

var artifactDateRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})$`)

// artifactDate reads the date out of "<prefix>-YYYY-MM-DD.mp3".
func artifactDate(path string) (time.Time, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := artifactDateRe.FindStringSubmatch(base)
	if m == nil {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("2006-01-02", m[1], time.Local)
	return d, err == nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mp3Path := args[0]

	if !strings.HasSuffix(strings.ToLower(mp3Path), ".mp3") {
		return fmt.Errorf("file must have .mp3 extension: %s", mp3Path)
	}
	info, err := os.Stat(mp3Path)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", mp3Path)
	}
	fmt.Printf("File: %s (%s)\n", mp3Path, humanize.Bytes(uint64(info.Size())))

	date, ok := artifactDate(mp3Path)
	if flagPublishDate != "" {
		date, err = time.ParseInLocation("2006-01-02", flagPublishDate, time.Local)
		ok = err == nil
	}
	if !ok {
		return fmt.Errorf("cannot tell the episode date from %s: pass --date YYYY-MM-DD", filepath.Base(mp3Path))
	}

	req := publish.Request{Date: date, AudioPath: mp3Path}
	txt := strings.TrimSuffix(mp3Path, filepath.Ext(mp3Path)) + ".txt"
	if transcript, err := script.LoadTranscript(txt); err == nil {
		req.Transcript = transcript
		req.TranscriptPath = txt
	} else {
		fmt.Printf("Warning: no transcript next to the episode (%v)\n", err)
	}

	ff := assembly.NewFFmpeg()
	if d, err := ff.ProbeDuration(ctx, mp3Path); err == nil {
		req.Duration = d
		fmt.Printf("Duration: %s\n", assembly.FormatDuration(d))
	} else {
		fmt.Println("Warning: ffprobe not available, duration left out of the feed")
	}

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p := pipeline.NewPublisher(a.setup, filepath.Dir(mp3Path))
	ep, err := p.Publish(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("\nPublished: %s\n", ep.Title)
	fmt.Printf("  Audio: %s\n", ep.AudioURL)
	fmt.Printf("  Feed:  %s\n", p.FeedPath)
	return nil
}
