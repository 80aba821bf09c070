package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db/sqlrepo"
)

// seedFile is the directory and metrics fixture format.
type seedFile struct {
	Users []struct {
		ID        string `yaml:"id"`
		FirstName string `yaml:"first_name"`
		LastName  string `yaml:"last_name"`
		Role      string `yaml:"role"`
		StoreID   string `yaml:"store_id"`
		MarketID  string `yaml:"market_id"`
		Active    *bool  `yaml:"active"`
	} `yaml:"users"`
	Units []struct {
		ID       string `yaml:"id"`
		Kind     string `yaml:"kind"`
		Name     string `yaml:"name"`
		ParentID string `yaml:"parent_id"`
	} `yaml:"units"`
	Metrics []struct {
		Kind   string            `yaml:"kind"`
		ID     string            `yaml:"id"`
		Month  int               `yaml:"month"`
		Year   int               `yaml:"year"`
		Goal   bool              `yaml:"goal"`
		Fields map[string]string `yaml:"fields"`
	} `yaml:"metrics"`
}

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Migrate the schema and load users, units and metrics from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read seed file")
		}
		var seed seedFile
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&seed); err != nil {
			return eris.Wrapf(err, "parse seed file %s", args[0])
		}

		ctx := cmd.Context()
		conn, dialect, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := sqlrepo.Migrate(ctx, conn, dialect); err != nil {
			return err
		}

		dir := sqlrepo.NewDirectoryRepository(conn, dialect)
		for _, u := range seed.Units {
			if err := dir.SaveUnit(ctx, entity.Unit{ID: u.ID, Kind: entity.Kind(u.Kind), Name: u.Name, ParentID: u.ParentID}); err != nil {
				return err
			}
		}
		for _, u := range seed.Users {
			role := entity.Role(u.Role)
			if role == "" {
				role = entity.RoleAdvisor
			}
			if err := dir.SaveUser(ctx, entity.User{
				ID:        u.ID,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Role:      role,
				StoreID:   u.StoreID,
				MarketID:  u.MarketID,
				Active:    u.Active == nil || *u.Active,
			}); err != nil {
				return err
			}
		}

		repo := sqlrepo.NewMetricsRepository(conn, dialect)
		for _, m := range seed.Metrics {
			kind := entity.Kind(m.Kind)
			if kind == "" {
				kind = entity.KindAdvisor
			}
			p := entity.Period{Month: m.Month, Year: m.Year}
			if err := repo.Put(ctx, kind, m.ID, p, m.Goal, m.Fields); err != nil {
				return err
			}
		}

		zap.L().Info("seed loaded",
			zap.Int("users", len(seed.Users)),
			zap.Int("units", len(seed.Units)),
			zap.Int("metric_sets", len(seed.Metrics)),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d units, %d metric sets\n", len(seed.Users), len(seed.Units), len(seed.Metrics))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
