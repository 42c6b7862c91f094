package cli

import (
	"time"

	"github.com/ZanzyTHEbar/friendlink-go/internal/pipeline"
	"github.com/spf13/cobra"
)

type trainSummary struct {
	RunID          string  `json:"run_id"`
	Walks          int     `json:"walks"`
	Tokens         int     `json:"tokens"`
	VocabularySize int     `json:"vocab_size"`
	Dimensions     int     `json:"dimensions"`
	Seconds        float64 `json:"seconds"`
}

func newTrainCmd(a *app) *cobra.Command {
	var (
		dimensions, walkLength, numWalks   int
		window, minCount, epochs, negative int
		workers                            int
		p, q                               float64
		seed                               int64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train node embeddings from the graph artifact",
		Long:  "Loads the graph artifact, generates node2vec walks, trains skip-gram embeddings and replaces the model artifact. Nothing is written if any step fails.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Walk: a.cfg.Walk, Embedding: a.cfg.Embedding}
			flags := cmd.Flags()
			if flags.Changed("dimensions") {
				opts.Embedding.Dimensions = dimensions
			}
			if flags.Changed("walk-length") {
				opts.Walk.WalkLength = walkLength
			}
			if flags.Changed("num-walks") {
				opts.Walk.NumWalks = numWalks
			}
			if flags.Changed("p") {
				opts.Walk.P = p
			}
			if flags.Changed("q") {
				opts.Walk.Q = q
			}
			if flags.Changed("window") {
				opts.Embedding.Window = window
			}
			if flags.Changed("min-count") {
				opts.Embedding.MinCount = minCount
			}
			if flags.Changed("epochs") {
				opts.Embedding.Epochs = epochs
			}
			if flags.Changed("negative") {
				opts.Embedding.Negative = negative
			}
			if flags.Changed("workers") {
				opts.Walk.Workers = workers
				opts.Embedding.Workers = workers
			}
			if flags.Changed("seed") {
				opts.Walk.Seed = seed
				opts.Embedding.Seed = seed
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			res, err := svc.Train(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), trainSummary{
				RunID:          res.Meta.RunID.String(),
				Walks:          res.Walks,
				Tokens:         res.Tokens,
				VocabularySize: res.Meta.VocabularySize,
				Dimensions:     res.Meta.Dimensions,
				Seconds:        res.Duration.Round(time.Millisecond).Seconds(),
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&dimensions, "dimensions", 0, "embedding dimensionality")
	f.IntVar(&walkLength, "walk-length", 0, "maximum walk length")
	f.IntVar(&numWalks, "num-walks", 0, "walks started from each node")
	f.Float64Var(&p, "p", 0, "return parameter")
	f.Float64Var(&q, "q", 0, "in-out parameter")
	f.IntVar(&window, "window", 0, "skip-gram context window")
	f.IntVar(&minCount, "min-count", 0, "minimum occurrences for a node to be embedded")
	f.IntVar(&epochs, "epochs", 0, "training epochs")
	f.IntVar(&negative, "negative", 0, "negative samples per positive pair")
	f.IntVar(&workers, "workers", 0, "parallel workers for walks and training")
	f.Int64Var(&seed, "seed", 0, "random seed")
	return cmd
}
