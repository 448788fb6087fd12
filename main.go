package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"melody-sketch/config"
	"melody-sketch/debug"
	"melody-sketch/midi"
	"melody-sketch/midifile"
	"melody-sketch/sequencer"
	"melody-sketch/theme"
	"melody-sketch/tui"
)

var (
	Version = "dev"

	// Command-line configuration
	flags struct {
		port     string
		input    string
		logFile  string
		logLevel string
		output   string
		loops    int
	}
)

var rootCmd = &cobra.Command{
	Use:   "melody-sketch",
	Short: "A piano-roll melody sketchpad for MIDI synths",
	Long: `melody-sketch is a terminal piano roll. Draw notes on a 64-step grid,
loop them through a MIDI synth and export the result as a Standard MIDI File.

The melody is saved automatically after every edit.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runEditor,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the saved melody to a MIDI file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file.mid>",
	Short: "Replace the saved melody with a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Loop the saved melody without the editor",
	Args:  cobra.NoArgs,
	RunE:  runPlay,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var sketchCmd = &cobra.Command{
	Use:   "sketch",
	Short: "Manage saved sketches",
}

var sketchSaveCmd = &cobra.Command{
	Use:   "save [name]",
	Short: "Save the current melody as a sketch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSketchSave,
}

var sketchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sketches, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSketchList,
}

var sketchLoadCmd = &cobra.Command{
	Use:   "load [file or name]",
	Short: "Make a sketch the current melody (newest if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSketchLoad,
}

var sketchDeleteCmd = &cobra.Command{
	Use:   "delete <file>",
	Short: "Delete a saved sketch",
	Args:  cobra.ExactArgs(1),
	RunE:  runSketchDelete,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the effective settings to the config file",
	Long: `config writes the settings in effect (file, environment and the
--port, --input and --log-level flags) to config.json in the config dir,
so later runs pick them up without flags.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.port, "port", "p", "",
		"MIDI output port (name or substring, overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flags.input, "input", "i", "",
		"MIDI keyboard for step entry (name or substring)")
	rootCmd.PersistentFlags().StringVarP(&flags.logFile, "log", "l", "",
		"Write logs to this file (default: melody-sketch.log in the config dir)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")

	exportCmd.Flags().StringVarP(&flags.output, "output", "o", "",
		"Output path (default: "+midifile.FileName+" in the export dir)")
	playCmd.Flags().IntVarP(&flags.loops, "loops", "n", 1,
		"Number of times to play the loop (0 plays until interrupted)")

	sketchCmd.AddCommand(sketchSaveCmd, sketchListCmd, sketchLoadCmd, sketchDeleteCmd)
	rootCmd.AddCommand(exportCmd, importCmd, playCmd, portsCmd, sketchCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every command needs: config, state dir and a manager
type app struct {
	cfg     *config.Config
	dir     string
	clock   *sequencer.SystemClock
	manager *sequencer.Manager
}

// loadConfig reads the config file and applies the flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.port != "" {
		cfg.Output.PortName = flags.port
	}
	if flags.input != "" {
		cfg.Input.PortName = flags.input
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

// setup loads config, starts logging and restores the melody.
// withOutput also opens the MIDI output; failure there is not fatal.
func setup(withOutput bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}

	logPath := flags.logFile
	if logPath == "" {
		logPath = filepath.Join(dir, "melody-sketch.log")
	}
	if err := debug.Enable(logPath, cfg.LogLevel); err != nil {
		return nil, err
	}

	clock := sequencer.NewSystemClock()
	opts := sequencer.Options{
		Dir:          dir,
		Clock:        clock,
		DefaultTempo: cfg.UI.DefaultTempo,
	}
	if withOutput {
		if sink := openSink(cfg, clock); sink != nil {
			opts.Sink = sink
		}
	}

	return &app{
		cfg:     cfg,
		dir:     dir,
		clock:   clock,
		manager: sequencer.NewManager(opts),
	}, nil
}

// openSink returns nil when no output is available; the editor still works
// silently.
func openSink(cfg *config.Config, clock *sequencer.SystemClock) *midi.OutputSink {
	send, name, err := midi.OpenOutput(cfg.Output.PortName)
	if err != nil {
		debug.Warn("midi", "no output: %v", err)
		return nil
	}
	debug.Log("midi", "output %s channel %d", name, cfg.Output.Channel)
	return midi.NewOutputSink(send, clock, cfg.MIDIChannel())
}

func runEditor(cmd *cobra.Command, args []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer debug.Disable()

	// Output and keyboard are picked up (and dropped) as they are plugged in
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	devices := midi.NewDeviceManager(a.cfg.Output.PortName, a.cfg.Input.PortName,
		a.clock, a.cfg.MIDIChannel())
	go devices.Run(ctx)
	go devices.Follow(a.manager)

	th := theme.Load(a.cfg.UI.PalettePath)
	m := tui.NewModel(a.manager, th, a.cfg.ExportPath(midifile.FileName))
	if a.cfg.Input.PortName != "" {
		m.Keys = devices.NoteEvents()
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		a.manager.Close()
		return err
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer debug.Disable()

	path := flags.output
	if path == "" {
		path = a.cfg.ExportPath(midifile.FileName)
	}
	if err := a.manager.Export(path); err != nil {
		return err
	}
	fmt.Printf("Exported %d notes at %d bpm to %s\n",
		a.manager.Store().Len(), a.manager.Tempo().BPM(), path)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer debug.Disable()

	n, err := a.manager.Import(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d notes at %d bpm\n", n, a.manager.Tempo().BPM())
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	a, err := setup(true)
	if err != nil {
		return err
	}
	defer debug.Disable()

	if a.manager.Store().Len() == 0 {
		return fmt.Errorf("nothing to play: the melody is empty")
	}

	loop := time.Duration(float64(sequencer.NumSteps) *
		sequencer.StepDuration(a.manager.Tempo().BPM()) * float64(time.Second))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var done <-chan time.Time
	if flags.loops > 0 {
		// leave room for the start offset and the last note's release
		done = time.After(time.Duration(flags.loops)*loop + 500*time.Millisecond)
	}

	fmt.Printf("Playing %d notes at %d bpm (ctrl+c to stop)\n",
		a.manager.Store().Len(), a.manager.Tempo().BPM())
	a.manager.Play()

	select {
	case <-done:
	case <-sig:
	}
	a.manager.Stop()
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	names, err := midi.ListOutputs()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No MIDI output ports")
		return nil
	}
	for i, n := range names {
		fmt.Printf("  %d: %s\n", i, n)
	}
	return nil
}

func runSketchSave(cmd *cobra.Command, args []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer debug.Disable()

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	filename, err := a.manager.SaveSketch(name)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", filename)
	return nil
}

func runSketchList(cmd *cobra.Command, args []string) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	sketches, err := sequencer.ListSketches(dir)
	if err != nil {
		return err
	}
	if len(sketches) == 0 {
		fmt.Println("No saved sketches")
		return nil
	}
	for _, s := range sketches {
		name := s.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("  %s  %-20s %s\n", s.Timestamp.Format("2006-01-02 15:04:05"), name, s.Filename)
	}
	return nil
}

func runSketchLoad(cmd *cobra.Command, args []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer debug.Disable()

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if err := a.manager.LoadSketch(name); err != nil {
		return err
	}
	fmt.Printf("Loaded %d notes at %d bpm\n", a.manager.Store().Len(), a.manager.Tempo().BPM())
	return nil
}

func runSketchDelete(cmd *cobra.Command, args []string) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	return sequencer.DeleteSketch(dir, args[0])
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
