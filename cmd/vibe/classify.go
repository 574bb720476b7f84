package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-vibe/classifier"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify an audio file and print the analysis as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runClassify,
	}
	cmd.Flags().Bool("emotion", false, "also run the event model emotion path")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	paths := classifier.PathEnvironment
	if withEmotion, _ := cmd.Flags().GetBool("emotion"); withEmotion {
		paths = classifier.PathAll
	}

	analysis, err := newClassifier(cfg).Analyze(cmd.Context(), base64.StdEncoding.EncodeToString(data), paths)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}
