package main

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// seedCaller performs seed writes. It is not an employee profile.
var seedCaller = generic.Caller{ID: "system", Role: generic.RoleSuperAdmin}

func newSeedCmd(configPath *string) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default work schedule and leave types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return seed(cmd.Context(), a, demo)
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "also create a small demo organisation")
	return cmd
}

func seed(ctx context.Context, a *app, demo bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc := a.service

	week := generic.StandardWeek()
	week.ID = "standard"
	week.IsDefault = true
	if _, err := svc.SaveWorkSchedule(ctx, seedCaller, week); err != nil {
		var ve *generic.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		a.logger.Info("default work schedule already present", zap.Error(err))
	}

	for _, lt := range []generic.LeaveType{
		{ID: "annual", Name: "Annual leave", DefaultAllowance: decimal.NewFromInt(20), Cadence: generic.CadenceAnnual},
		{ID: "sick", Name: "Sick leave", DefaultAllowance: decimal.NewFromInt(10), Cadence: generic.CadenceAnnual},
		{ID: "wfh", Name: "Work from home", DefaultAllowance: decimal.NewFromInt(4), Cadence: generic.CadenceMonthly},
	} {
		if _, err := svc.SaveLeaveType(ctx, seedCaller, lt); err != nil {
			return err
		}
	}

	if demo {
		for _, emp := range []generic.EmployeeProfile{
			{ID: "admin-1", Name: "Ada Admin", Position: "HR"},
			{ID: "mgr-1", Name: "Morgan Manager", Position: "Engineering lead", TeamID: "eng"},
			{ID: "emp-1", Name: "Eli Employee", Position: "Engineer", ManagerID: "mgr-1", TeamID: "eng"},
		} {
			if _, err := svc.SaveEmployee(ctx, seedCaller, emp); err != nil {
				return err
			}
		}
	}

	a.logger.Info("seed complete", zap.Bool("demo", demo))
	return nil
}
