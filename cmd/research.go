package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/model"
)

var (
	researchName     string
	researchLocality string
	researchRegion   string
	researchCountry  string
	researchWebsite  string
	researchKind     string
	researchNoSess   bool
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run a full research pass for a single entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := manifestForKind(model.EntityKind(researchKind))
		if err != nil {
			return err
		}

		req, err := model.NewResearchRequest(model.EntityKind(researchKind), model.Identity{
			Name:       researchName,
			Locality:   researchLocality,
			Region:     researchRegion,
			Country:    researchCountry,
			WebsiteURL: researchWebsite,
		}, m)
		if err != nil {
			return err
		}

		record, err := env.Orchestrator.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "research pass")
		}

		out := struct {
			SessionID string                `json:"session_id,omitempty"`
			Record    *model.ResearchRecord `json:"record"`
		}{Record: record}

		if !researchNoSess {
			sess, err := env.Sessions.Start(ctx, req, record)
			if err != nil {
				return eris.Wrap(err, "start session")
			}
			out.SessionID = sess.ID
		}

		zap.L().Info("research complete",
			zap.String("entity", req.Identity.Name),
			zap.Float64("record_confidence", record.RecordConfidence),
			zap.Int("degraded_sources", len(record.DegradedSources)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchName, "name", "", "entity name (required)")
	researchCmd.Flags().StringVar(&researchLocality, "locality", "", "city or locality (required)")
	researchCmd.Flags().StringVar(&researchRegion, "region", "", "state or region")
	researchCmd.Flags().StringVar(&researchCountry, "country", "", "country")
	researchCmd.Flags().StringVar(&researchWebsite, "website", "", "known website URL")
	researchCmd.Flags().StringVar(&researchKind, "kind", string(model.EntityLodging), "entity kind")
	researchCmd.Flags().BoolVar(&researchNoSess, "no-session", false, "print the record without opening a validation session")
	_ = researchCmd.MarkFlagRequired("name")
	_ = researchCmd.MarkFlagRequired("locality")
	rootCmd.AddCommand(researchCmd)
}
