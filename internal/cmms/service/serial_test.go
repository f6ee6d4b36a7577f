package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialPrefix(t *testing.T) {
	assert.Equal(t, "1CB-", SerialPrefix(entity.PhaseOneCode, entity.ShiftLongDay))
	assert.Equal(t, "2DB-", SerialPrefix(entity.PhaseTwoCode, entity.ShiftRotating))
	assert.Equal(t, "1XX-", SerialPrefix(entity.PhaseOneCode, "night"))
}

func TestParseSerialSuffix(t *testing.T) {
	n, ok := ParseSerialSuffix("1CB-000042")
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = ParseSerialSuffix("1CB-")
	assert.False(t, ok)
	_, ok = ParseSerialSuffix("")
	assert.False(t, ok)

	assert.Equal(t, "2DB-000007", FormatSerial("2DB-", 7))
	assert.Equal(t, "1CB-1234567", FormatSerial("1CB-", 1234567))
}

func TestSerialAllocatorNext(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	scope := env.adminScope()

	rec, err := env.Svc.ShiftRecord.Create(ctx, scope, &CreateRecordRequest{
		PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "空压机",
	})
	require.NoError(t, err)
	assert.Equal(t, "1CB-000001", rec.SerialNumber)

	// 手工指定较大序号后继续递增
	_, err = env.Svc.ShiftRecord.Create(ctx, scope, &CreateRecordRequest{
		SerialNumber: "1CB-000010", PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "冷却塔",
	})
	require.NoError(t, err)

	next, err := NewSerialAllocator(env.Repos.ShiftRecord).Next(ctx, entity.PhaseOneCode, entity.ShiftLongDay)
	require.NoError(t, err)
	assert.Equal(t, "1CB-000011", next)

	// 其他前缀互不影响
	other, err := NewSerialAllocator(env.Repos.ShiftRecord).Next(ctx, entity.PhaseTwoCode, entity.ShiftRotating)
	require.NoError(t, err)
	assert.Equal(t, "2DB-000001", other)
}

func TestCreateRecordDuplicateSerial(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	req := &CreateRecordRequest{
		SerialNumber: "1CB-000005", PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "泵",
	}
	_, err := env.Svc.ShiftRecord.Create(ctx, env.adminScope(), req)
	require.NoError(t, err)

	_, err = env.Svc.ShiftRecord.Create(ctx, env.adminScope(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateSerial))
}

// fillSerialWindow 让最大序号无法解析，并占满从 1 开始的探测范围
func fillSerialWindow(t *testing.T, env *testEnv) {
	t.Helper()
	serials := []string{"1CB-legacy"}
	for n := 1; n <= serialScanLimit; n++ {
		serials = append(serials, FormatSerial("1CB-", n))
	}
	testutil.SeedSerials(t, env.DB, env.Plant.Org.ID, env.Plant.Phase1.ID, env.Plant.LongDay.ID, serials...)
}

func TestCreateRecordSerialExhausted(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	fillSerialWindow(t, env)

	_, err := env.Svc.ShiftRecord.Create(ctx, env.adminScope(), &CreateRecordRequest{
		PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "泵",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSerialExhausted))

	// 其它前缀不受影响
	rec, err := env.Svc.ShiftRecord.Create(ctx, env.adminScope(), &CreateRecordRequest{
		PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftRotating, EquipmentName: "泵",
	})
	require.NoError(t, err)
	assert.Equal(t, "1DB-000001", rec.SerialNumber)
}

func TestConcurrentRecordSerialsAreUnique(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	scope := env.adminScope()

	const writers = 8
	var wg sync.WaitGroup
	serials := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := env.Svc.ShiftRecord.Create(ctx, scope, &CreateRecordRequest{
				PhaseCode:     entity.PhaseOneCode,
				ShiftTypeCode: entity.ShiftRotating,
				EquipmentName: fmt.Sprintf("设备%d", i),
			})
			errs[i] = err
			if err == nil {
				serials[i] = rec.SerialNumber
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		assert.Regexp(t, `^1DB-\d{6}$`, serials[i])
		assert.False(t, seen[serials[i]], "duplicate serial %s", serials[i])
		seen[serials[i]] = true
	}
}

func TestCreateRecordComputesDurationAndMonth(t *testing.T) {
	env := setupServices(t)
	svc := env.Svc.ShiftRecord
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	manual := 9.0
	rec, err := svc.Create(context.Background(), env.adminScope(), &CreateRecordRequest{
		PhaseCode: entity.PhaseTwoCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "风机",
		StartDatetime: &start, EndDatetime: &end, Duration: &manual,
	})
	require.NoError(t, err)
	require.NotNil(t, rec.Duration)
	assert.Equal(t, 2.5, *rec.Duration)
	assert.Equal(t, "3", rec.Month)
	assert.Equal(t, "2CB-000001", rec.SerialNumber)
}

func TestCreateRecordRejectsUnknownChangeReason(t *testing.T) {
	env := setupServices(t)
	_, err := env.Svc.ShiftRecord.Create(context.Background(), env.adminScope(), &CreateRecordRequest{
		PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "泵", ChangeReason: "保养",
	})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRecordScopeByRole(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	svc := env.Svc.ShiftRecord

	mine, err := svc.Create(ctx, env.operatorScope(), &CreateRecordRequest{
		PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "A",
	})
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, env.adminScope(), &CreateRecordRequest{
		PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "B",
	})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, env.operatorScope(), 1, 20, RecordQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, mine.ID, items[0].ID)

	_, total, err = svc.List(ctx, env.adminScope(), 1, 20, RecordQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, err = svc.Get(ctx, env.operatorScope(), theirs.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = svc.Delete(ctx, env.operatorScope(), theirs.ID)
	assert.Error(t, err)
}
