package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/history"
	"github.com/myrjola/interrogame/internal/kv"
	"github.com/myrjola/interrogame/internal/logging"
	"github.com/spf13/cobra"
)

var profileGroup = &cobra.Group{
	ID:    "profile",
	Title: "Play history and statistics",
}

func init() {
	historyCmd.Flags().Int("limit", 10, "number of sessions to show, newest first")
	exportCmd.Flags().Bool("surveys", false, "export the survey answers instead of the full history")
	exportCmd.Flags().String("out", "", "output file, defaults to stdout")
}

// openHistory opens the same blob-backed history the server uses. The caller
// must call the returned close function.
func openHistory() (*history.Store, func(), error) {
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
	blobs, err := kv.NewStore(getenv("INTERROGAME_SQLITE_URL", "./interrogame.sqlite"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "open blob store")
	}
	store := history.NewStore(context.Background(), blobs, logger)
	return store, func() { _ = blobs.Close() }, nil
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "profile",
	Short:   "Show aggregate play statistics",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		stats := store.Stats()
		fmt.Printf("Sessions:        %d\n", stats.TotalSessions)
		fmt.Printf("Solved:          %d (%d%%)\n", stats.CorrectSessions, stats.WinRate)
		fmt.Printf("Current streak:  %d\n", stats.CurrentStreak)
		fmt.Printf("Best streak:     %d\n", stats.MaxStreak)
		fmt.Printf("Avg play time:   %ds\n", stats.AveragePlayTime)
		fmt.Printf("Questions used:  avg %d, min %d, max %d\n",
			stats.Questions.Average, stats.Questions.Min, stats.Questions.Max)

		if len(stats.SuspectAccuracy) > 0 {
			fmt.Println("Accusations by suspect:")
			ids := make([]int, 0, len(stats.SuspectAccuracy))
			for id := range stats.SuspectAccuracy {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				accuracy := stats.SuspectAccuracy[id]
				fmt.Printf("  suspect %d: accused %d time(s), right %d time(s) (%d%%)\n",
					id, accuracy.TimesSelected, accuracy.TimesCorrect, accuracy.Accuracy)
			}
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "profile",
	Short:   "List recent sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return errors.Wrap(err, "invalid limit flag")
		}
		store, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		sessions := store.Recent(limit)
		if len(sessions) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}
		for _, session := range sessions {
			result := "✗"
			if session.IsCorrect {
				result = "✓"
			}
			surveyed := ""
			if session.Survey != nil {
				surveyed = " [surveyed]"
			}
			fmt.Printf("%s %s  %s  accused %d, guilty %d, %d question(s), %ds%s\n",
				result, session.StartedAt.Format("2006-01-02 15:04"), session.ID,
				session.SelectedSuspectID, session.GuiltySuspectID,
				session.QuestionsUsed, session.PlayTimeSeconds, surveyed)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "profile",
	Short:   "Export the history or the survey answers as CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		surveys, err := cmd.Flags().GetBool("surveys")
		if err != nil {
			return errors.Wrap(err, "invalid surveys flag")
		}
		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return errors.Wrap(err, "invalid out flag")
		}
		store, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		var out []byte
		if surveys {
			out, err = store.ExportSurveyCSV()
		} else {
			out, err = store.ExportHistoryCSV()
		}
		if err != nil {
			return errors.Wrap(err, "export CSV")
		}

		if outPath == "" {
			_, err = os.Stdout.Write(out)
			return err
		}
		return os.WriteFile(outPath, out, 0o644)
	},
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	GroupID: "profile",
	Short:   "Delete the whole play history",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		store.Clear(context.Background())
		fmt.Println("History cleared.")
		return nil
	},
}
