package main

import (
	"github.com/spf13/cobra"

	"accountability/internal/domain/model"
)

func newHistoryCmd(rc *rootConfig) *cobra.Command {
	q := model.DefaultHistoricalQuery()
	var fidelity, span, bounds string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Period-over-period percentage changes of portfolio equity",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Fidelity = model.Fidelity(fidelity)
			q.Span = model.Span(span)
			q.Bounds = model.Bounds(bounds)
			if err := q.Validate(); err != nil {
				return err
			}

			c, log, err := rc.open(cmd, true)
			if err != nil {
				return err
			}
			defer c.Close()

			points, err := c.Portfolio().HistoricalPercentage(cmd.Context(), q)
			if err != nil {
				log.Error().Err(err).Msg("historical percentage failed")
				return err
			}
			return rc.sink().WriteSeries(model.SeriesHistorical, points)
		},
	}

	cmd.Flags().StringVar(&fidelity, "fidelity", string(q.Fidelity), "sample interval: 5minute, 10minute, hour, day, week")
	cmd.Flags().StringVar(&span, "span", string(q.Span), "time span: day, week, month, 3month, year, 5year, all")
	cmd.Flags().StringVar(&bounds, "bounds", string(q.Bounds), "trading hours: regular, extended, trading")
	return cmd
}

func newYTDCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "ytd",
		Short: "Deposit-adjusted running year-to-date return",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, log, err := rc.open(cmd, true)
			if err != nil {
				return err
			}
			defer c.Close()

			points, err := c.Portfolio().RunningYTD(cmd.Context())
			if err != nil {
				log.Error().Err(err).Msg("running ytd failed")
				return err
			}
			return rc.sink().WriteSeries(model.SeriesYTD, points)
		},
	}
}

func newHealthCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the cache store is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := rc.open(cmd, false)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Store().Ping(cmd.Context()); err != nil {
				return err
			}
			return rc.sink().WriteStatus("healthy")
		},
	}
}
