package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/briefcast/internal/assembly"
	"github.com/apresai/briefcast/internal/pipeline"
	"github.com/apresai/briefcast/internal/progress"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/tts"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "briefcast",
	Short:         "Turn the day's news into a two-anchor audio briefing",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("briefcast %s\n", Version)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Gather news, write the script and render today's episode",
	RunE:  runGenerate,
}

var renderCmd = &cobra.Command{
	Use:   "render <transcript>",
	Short: "Render an existing transcript to an episode",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var segmentCmd = &cobra.Command{
	Use:   "segment <transcript|->",
	Short: "Show how a transcript splits into speaker utterances",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegment,
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List available voices for all TTS providers",
	RunE:  runListVoices,
}

var (
	flagShow      string
	flagEnvFile   string
	flagVerbose   bool
	flagLogFormat string

	flagInputs       []string
	flagFeeds        []string
	flagItems        int
	flagOutputDir    string
	flagPrefix       string
	flagDate         string
	flagTopic        string
	flagLength       string
	flagTTS          string
	flagTTSModel     string
	flagWorkers      int
	flagScriptOnly   bool
	flagFromScript   string
	flagDryRun       bool
	flagPublish      bool
	flagNoBackground bool
	flagBackground   string

	flagJSON bool
	flagTUI  bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(listVoicesCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagShow, "show", "", "Show file (YAML); defaults to ./briefcast.yaml or the user config dir")
	pf.StringVar(&flagEnvFile, "env-file", ".env", "Dotenv file loaded before the environment is read")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging instead of the progress bar")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: json or text (default picks by terminal)")

	for _, c := range []*cobra.Command{generateCmd, renderCmd} {
		f := c.Flags()
		f.StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory for the .mp3/.txt artifacts")
		f.StringVar(&flagPrefix, "prefix", "", "Artifact prefix; files are <prefix>-YYYY-MM-DD")
		f.StringVar(&flagDate, "date", "", "Episode date (YYYY-MM-DD, default today)")
		f.StringVarP(&flagTTS, "tts", "T", "", "TTS provider: "+strings.Join(tts.ProviderNames, ", "))
		f.StringVar(&flagTTSModel, "tts-model", "", "TTS model ID")
		f.IntVar(&flagWorkers, "workers", 0, "Concurrent TTS requests")
		f.BoolVar(&flagDryRun, "dry-run", false, "Segment and estimate the layout without synthesizing")
		f.BoolVar(&flagPublish, "publish", false, "Upload the episode and update feed.xml")
		f.BoolVar(&flagNoBackground, "no-background", false, "Render voice only")
		f.StringVar(&flagBackground, "background-url", "", "Background music URL")
	}

	g := generateCmd.Flags()
	g.StringSliceVarP(&flagInputs, "input", "i", nil, "Source material (URL, feed URL, PDF or text file); repeatable")
	g.StringSliceVar(&flagFeeds, "feed", nil, "RSS/Atom feeds to read when no --input is given; repeatable")
	g.IntVar(&flagItems, "items", 0, "Items read per feed")
	g.StringVarP(&flagTopic, "topic", "p", "", "Focus the brief on a topic")
	g.StringVarP(&flagLength, "length", "d", "", "Brief length: short, standard, long")
	g.BoolVarP(&flagScriptOnly, "script-only", "S", false, "Write the transcript only, skip TTS and assembly")
	g.StringVarP(&flagFromScript, "from-script", "f", "", "Render an existing transcript instead of writing one")

	segmentCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the segmentation as JSON")
	segmentCmd.Flags().BoolVarP(&flagTUI, "tui", "t", false, "Review the utterances interactively")
}

// Execute runs the root command; ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if flagScriptOnly && flagFromScript != "" {
		return fmt.Errorf("--script-only and --from-script are mutually exclusive")
	}
	if flagFromScript != "" && len(flagInputs) > 0 {
		return fmt.Errorf("--input and --from-script are mutually exclusive")
	}

	opts := pipeline.Options{
		Inputs:     flagInputs,
		ScriptOnly: flagScriptOnly,
	}
	if flagFromScript != "" {
		transcript, err := script.LoadTranscript(flagFromScript)
		if err != nil {
			return err
		}
		opts.Transcript = transcript
	}
	return run(cmd, opts)
}

func runRender(cmd *cobra.Command, args []string) error {
	transcript, err := script.LoadTranscript(args[0])
	if err != nil {
		return err
	}
	return run(cmd, pipeline.Options{Transcript: transcript})
}

func run(cmd *cobra.Command, opts pipeline.Options) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	show := a.setup.Show
	opts.Feeds = show.Feeds
	opts.ItemsPerFeed = show.ItemsPerFeed
	opts.OutputDir = show.OutputDir
	opts.Prefix = show.Prefix
	opts.Topic = show.Topic
	opts.Length = show.Length
	opts.DryRun = flagDryRun
	opts.Publish = flagPublish || show.Publish.Enabled
	if flagDate != "" {
		d, err := time.ParseInLocation("2006-01-02", flagDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", flagDate)
		}
		opts.Date = d
	}

	needsAudio := !opts.ScriptOnly && !opts.DryRun
	if needsAudio && !assembly.NewFFmpeg().Available() {
		return fmt.Errorf("FFmpeg not found: install it and make sure ffmpeg is on PATH")
	}

	runner, err := a.runner(ctx)
	if err != nil {
		return err
	}

	var bar *progress.BarRenderer
	if !flagVerbose {
		bar = progress.NewBarRenderer(os.Stdout)
		runner.OnProgress = bar.Handle
	}

	res, err := runner.Run(ctx, opts)
	if bar != nil {
		if err != nil {
			bar.Handle(progress.Event{Stage: progress.StageComplete, Error: err})
		}
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if res.Plan != nil {
		printPlan(res.Plan)
	}
	if res.Episode != nil {
		fmt.Printf("  Published %q at %s\n", res.Episode.Title, res.Episode.AudioURL)
	}
	return nil
}

func printPlan(plan *pipeline.Plan) {
	fmt.Printf("\n  %-4s %-8s %-8s %-7s %s\n", "#", "ROLE", "START", "LENGTH", "TEXT")
	byIndex := make(map[int]script.Utterance, len(plan.Segmentation.Utterances))
	for _, u := range plan.Segmentation.Utterances {
		byIndex[u.Index] = u
	}
	for _, e := range plan.Layout.Entries {
		fmt.Printf("  %-4d %-8s %-8s %-7s %s\n",
			e.Index, e.Role, assembly.FormatDuration(e.Start), e.Duration.Round(100*time.Millisecond), clip(byIndex[e.Index].Text, 60))
	}
	fmt.Printf("\n  Estimated length: %s\n\n", assembly.FormatDuration(plan.Layout.Total))
}

func runSegment(cmd *cobra.Command, args []string) error {
	var transcript string
	if args[0] == "-" {
		data, err := readAll(os.Stdin)
		if err != nil {
			return err
		}
		transcript = data
	} else {
		t, err := script.LoadTranscript(args[0])
		if err != nil {
			return err
		}
		transcript = t
	}

	show, err := loadShow()
	if err != nil {
		return err
	}
	cast, err := pipeline.NewCast(show)
	if err != nil {
		return err
	}
	seg := cast.Segment(transcript)

	switch {
	case flagTUI:
		return runReview(seg, cast)
	case flagJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(seg)
	}

	for _, u := range seg.Utterances {
		fmt.Printf("%3d  %-8s %s\n", u.Index, u.Role, u.Text)
	}
	fmt.Printf("\n%d utterances (%d tagged, %d carried forward, %d dropped)\n",
		len(seg.Utterances), seg.Matched, seg.CarriedForward, seg.Dropped)
	for _, issue := range script.Review(seg) {
		fmt.Printf("%s: %s\n", issue.Severity, issue.Message)
	}
	return nil
}

func runListVoices(cmd *cobra.Command, args []string) error {
	labels := map[string]string{
		"google":        "GOOGLE CLOUD TTS",
		"polly":         "AMAZON POLLY",
		"elevenlabs":    "ELEVENLABS",
		"gemini":        "GEMINI (AI Studio)",
		"gemini-vertex": "GEMINI (Vertex AI)",
		"openai":        "OPENAI",
	}

	fmt.Println("\nAvailable voices:")

	for _, name := range tts.ProviderNames {
		voices, err := tts.AvailableVoices(name)
		if err != nil {
			return err
		}

		fmt.Printf("\n  %s\n", labels[name])
		fmt.Printf("  %s\n", strings.Repeat("─", 50))
		fmt.Printf("  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			def := ""
			if v.DefaultFor != "" {
				def = fmt.Sprintf(" (default %s)", v.DefaultFor)
			}
			fmt.Printf("  %-28s %-12s %-8s %s%s\n", v.ID, v.Name, v.Gender, v.Description, def)
		}
	}
	fmt.Println()
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
