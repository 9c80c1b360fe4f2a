package main

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/auditor/internal/application/quota"
	"github.com/bryanwahyu/auditor/internal/domain/tenants"
	"github.com/bryanwahyu/auditor/internal/domain/widgets"
)

var (
	tenantArgs struct {
		name, email, plan, brand, color, logo string
		limit                                 int
	}
	widgetArgs struct {
		tenant, webhook, secret   string
		requireEmail, requireName bool
		inactive                  bool
	}
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantSaveCmd = &cobra.Command{
	Use:   "save ID",
	Short: "Create or update a tenant; consumption is kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		t := &tenants.Tenant{
			ID:    args[0],
			Name:  tenantArgs.name,
			Email: tenantArgs.email,
			Plan:  tenants.Plan(tenantArgs.plan),
		}
		// -1 keeps the plan default
		if tenantArgs.limit >= 0 {
			limit := tenantArgs.limit
			t.AuditLimit = &limit
		} else {
			t.AuditLimit = tenants.DefaultLimit(t.Plan)
		}
		if tenantArgs.brand != "" || tenantArgs.color != "" || tenantArgs.logo != "" {
			t.Branding = &tenants.Branding{Name: tenantArgs.brand, PrimaryColor: tenantArgs.color, LogoURL: tenantArgs.logo}
		}
		if err := a.tenants.Save(cmd.Context(), t); err != nil {
			return err
		}
		a.log.WithField("tenant_id", t.ID).Info("tenant saved")
		return nil
	},
}

var tenantUsageCmd = &cobra.Command{
	Use:   "usage ID",
	Short: "Print plan, limit and consumption of a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		u, err := quota.NewLedger(a.tenants).Usage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	},
}

var widgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "Manage lead capture widgets",
}

var widgetSaveCmd = &cobra.Command{
	Use:   "save ID",
	Short: "Create or update a widget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.tenants.Get(cmd.Context(), widgetArgs.tenant); err != nil {
			return err
		}
		w := &widgets.Widget{
			ID:            args[0],
			TenantID:      widgetArgs.tenant,
			RequireEmail:  widgetArgs.requireEmail,
			RequireName:   widgetArgs.requireName,
			WebhookURL:    widgetArgs.webhook,
			WebhookSecret: widgetArgs.secret,
			Active:        !widgetArgs.inactive,
		}
		if err := a.widgets.Save(cmd.Context(), w); err != nil {
			return err
		}
		a.log.WithFields(logrus.Fields{"widget_id": w.ID, "tenant_id": w.TenantID}).Info("widget saved")
		return nil
	},
}

func init() {
	f := tenantSaveCmd.Flags()
	f.StringVar(&tenantArgs.name, "name", "", "Display name")
	f.StringVar(&tenantArgs.email, "email", "", "Fallback address for completion emails")
	f.StringVar(&tenantArgs.plan, "plan", string(tenants.PlanFree), "Plan: free, starter, pro or agency")
	f.IntVar(&tenantArgs.limit, "limit", -1, "Audit limit; -1 uses the plan default")
	f.StringVar(&tenantArgs.brand, "brand", "", "Report brand name")
	f.StringVar(&tenantArgs.color, "color", "", "Report primary color, #rrggbb")
	f.StringVar(&tenantArgs.logo, "logo", "", "Report logo URL")
	tenantCmd.AddCommand(tenantSaveCmd, tenantUsageCmd)

	wf := widgetSaveCmd.Flags()
	wf.StringVar(&widgetArgs.tenant, "tenant", "", "Owning tenant")
	wf.BoolVar(&widgetArgs.requireEmail, "require-email", false, "Reject leads without email")
	wf.BoolVar(&widgetArgs.requireName, "require-name", false, "Reject leads without name")
	wf.StringVar(&widgetArgs.webhook, "webhook", "", "URL notified when a lead's audit completes")
	wf.StringVar(&widgetArgs.secret, "secret", "", "HMAC secret for webhook signatures")
	wf.BoolVar(&widgetArgs.inactive, "inactive", false, "Disable the widget")
	_ = widgetSaveCmd.MarkFlagRequired("tenant")
	widgetCmd.AddCommand(widgetSaveCmd)
}
