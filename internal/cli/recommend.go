package cli

import (
	"strconv"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/spf13/cobra"
)

func newRecommendCmd(a *app) *cobra.Command {
	var intIDs bool
	var topN int

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Query the trained model",
	}
	cmd.PersistentFlags().BoolVar(&intIDs, "int-ids", false, "treat every id argument as an integer id")
	cmd.PersistentFlags().IntVarP(&topN, "top-n", "n", 5, "maximum number of recommendations")

	parse := func(raw []string) ([]apptype.NodeID, error) {
		ids := make([]apptype.NodeID, 0, len(raw))
		for _, s := range raw {
			if !intIDs {
				ids = append(ids, apptype.StringID(s))
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, apptype.Configurationf("invalid integer id %q", s)
			}
			ids = append(ids, apptype.IntID(n))
		}
		return ids, nil
	}

	var known []string
	var noGraph bool
	userCmd := &cobra.Command{
		Use:   "user <user-id>",
		Short: "Recommend connections for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parse(append(args[:1:1], known...))
			if err != nil {
				return err
			}
			var knownIDs []apptype.NodeID
			if cmd.Flags().Changed("known") || noGraph {
				knownIDs = ids[1:]
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			recs, err := svc.RecommendForUser(cmd.Context(), ids[0], knownIDs, topN)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), apptype.RecommendationResult{Recommendations: apptype.ToRecommendations(recs)})
		},
	}
	userCmd.Flags().StringSliceVar(&known, "known", nil, "known neighbor ids (default: the user's graph neighbors)")
	userCmd.Flags().BoolVar(&noGraph, "no-graph", false, "do not exclude graph neighbors when --known is not given")

	interestsCmd := &cobra.Command{
		Use:   "interests <feature-id>...",
		Short: "Recommend users for a new user from interest ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parse(args)
			if err != nil {
				return err
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			recs, err := svc.RecommendFromInterests(cmd.Context(), ids, topN)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), apptype.RecommendationResult{Recommendations: apptype.ToRecommendations(recs)})
		},
	}

	var k int
	similarCmd := &cobra.Command{
		Use:   "similar <node-id>",
		Short: "Nearest nodes of any kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parse(args)
			if err != nil {
				return err
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			similar, err := svc.Similar(cmd.Context(), ids[0], k)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), apptype.RecommendationResult{Recommendations: apptype.ToRecommendations(similar)})
		},
	}
	similarCmd.Flags().IntVar(&k, "k", 10, "number of neighbors")

	cmd.AddCommand(userCmd, interestsCmd, similarCmd)
	return cmd
}
