package persistence

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const notifyFunctionSQL = `CREATE OR REPLACE FUNCTION notify_report_change() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify(
        %s,
        json_build_object('op', TG_OP, 'id', COALESCE(NEW.id, OLD.id))::text
    );
    RETURN NULL;
END;
$$ LANGUAGE plpgsql`

// NotifyFunctionSQL returns the trigger function body that notifies on channel.
func NotifyFunctionSQL(channel string) string {
	return fmt.Sprintf(notifyFunctionSQL, quoteLiteral(channel))
}

// InstallChangeNotify points the reports change trigger at channel. The migration installs the
// default channel; this replaces the function so the trigger and the listener always agree.
func InstallChangeNotify(ctx context.Context, db Execer, channel string, logger *zap.Logger) error {
	if db == nil {
		return nil
	}
	if _, err := db.Exec(ctx, NotifyFunctionSQL(channel)); err != nil {
		return fmt.Errorf("install change notify on %q: %w", channel, err)
	}
	logger.Info("report change notify installed", zap.String("channel", channel))
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
