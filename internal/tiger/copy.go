package tiger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/db"
)

const defaultBatchSize = 5000

var tractTable = pgx.Identifier{"geo", "census_tracts"}

// BulkLoad loads tract records into geo.census_tracts using the COPY
// protocol, in chunks of batchSize rows (0 = default 5,000).
func BulkLoad(ctx context.Context, pool db.Pool, records []TractRecord, batchSize int) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "tiger.copy"),
		zap.Int("total_rows", len(records)),
	)

	var total int64
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		batch := records[i:end]

		n, err := pool.CopyFrom(ctx, tractTable, tractColumns,
			pgx.CopyFromSlice(len(batch), func(j int) ([]any, error) {
				return batch[j].Row(), nil
			}),
		)
		if err != nil {
			return total, eris.Wrapf(err, "tiger: COPY into geo.census_tracts (batch %d-%d)", i, end)
		}
		total += n

		log.Debug("batch loaded",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}
	return total, nil
}

// DeleteState removes a state's tracts before a reload.
func DeleteState(ctx context.Context, pool db.Pool, stateFIPS string) (int64, error) {
	tag, err := pool.Exec(ctx, `DELETE FROM geo.census_tracts WHERE state_fips = $1`, stateFIPS)
	if err != nil {
		return 0, eris.Wrapf(err, "tiger: delete tracts for state %s", stateFIPS)
	}
	return tag.RowsAffected(), nil
}
