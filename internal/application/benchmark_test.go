//go:build integration

package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nikhilllyadav/SpringBus/internal/config"
	"github.com/nikhilllyadav/SpringBus/internal/infrastructure/postgres"
	redisinfra "github.com/nikhilllyadav/SpringBus/internal/infrastructure/redis"
)

// TestBenchmark_LargeScaleFleet は大規模な運行便数でのパフォーマンスを計測するベンチマークテスト
// 200便の作成、大型車両での並行座席ロック、同一座席への競合ロックを実証します
func TestBenchmark_LargeScaleFleet(t *testing.T) {
	if testing.Short() {
		t.Skip("大規模ベンチマークテストはshortモードではスキップ")
	}

	tripService, _, _, cleanup := setupScenarioEnv(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("200便ベンチマーク", func(t *testing.T) {
		const totalTrips = 200

		// 1. 200便を作成
		t.Log("=== 200便の作成開始 ===")
		startCreate := time.Now()

		for i := 0; i < totalTrips; i++ {
			_, err := tripService.ScheduleTrip(ctx, ScheduleTripInput{
				BusNumber:   fmt.Sprintf("KA-%02d-BM-%04d", i%20+1, i),
				Origin:      "Bangalore",
				Destination: "Mysore",
				DepartureAt: time.Now().Add(time.Duration(24+i) * time.Hour),
				ArrivalAt:   time.Now().Add(time.Duration(28+i) * time.Hour),
				Fare:        450,
				Capacity:    50,
			})
			require.NoError(t, err)
		}

		createDuration := time.Since(startCreate)
		createRate := float64(totalTrips) / createDuration.Seconds()
		t.Logf("便作成完了: %v (%.0f 便/秒)", createDuration, createRate)

		// 2. 大型車両での並行ロック（100人が異なる座席をロック）
		t.Log("=== 100人同時ロックのパフォーマンス計測 ===")
		bigTrip, err := tripService.ScheduleTrip(ctx, ScheduleTripInput{
			BusNumber:   "KA-99-BM-0500",
			Origin:      "Bangalore",
			Destination: "Chennai",
			DepartureAt: time.Now().Add(96 * time.Hour),
			ArrivalAt:   time.Now().Add(103 * time.Hour),
			Fare:        900,
			Capacity:    500,
		})
		require.NoError(t, err)

		const concurrentUsers = 100
		var successCount int32
		var errorCount int32
		var wg sync.WaitGroup

		startLock := time.Now()

		for i := 0; i < concurrentUsers; i++ {
			wg.Add(1)
			go func(userNum int) {
				defer wg.Done()

				// 各ユーザーは異なる座席を1席ずつロック
				seatNumber := fmt.Sprintf("%d", userNum*5+1)
				_, err := tripService.LockSeats(ctx, bigTrip.ID, []string{seatNumber},
					fmt.Sprintf("bench-user-%03d", userNum))

				if err == nil {
					atomic.AddInt32(&successCount, 1)
				} else {
					atomic.AddInt32(&errorCount, 1)
				}
			}(i)
		}
		wg.Wait()

		lockDuration := time.Since(startLock)
		lockRate := float64(successCount) / lockDuration.Seconds()
		t.Logf("並行ロック完了: %v", lockDuration)
		t.Logf("  成功: %d, エラー: %d", successCount, errorCount)
		t.Logf("  ロック処理速度: %.0f ロック/秒", lockRate)
		// 同一便への同時アクセスは便単位の排他で直列化されるため、
		// リトライ上限を超えた分は失敗してよい
		require.GreaterOrEqual(t, successCount, int32(1))
		require.Equal(t, int32(concurrentUsers), successCount+errorCount)

		// 3. 同一座席への競合ロック（100人が同じ座席をロック）
		t.Log("=== 100人同時競合ロックのパフォーマンス計測 ===")
		const competingUsers = 100
		var competitionSuccess int32
		var competitionConflict int32

		startCompete := time.Now()

		var wg2 sync.WaitGroup
		for i := 0; i < competingUsers; i++ {
			wg2.Add(1)
			go func(userNum int) {
				defer wg2.Done()

				_, err := tripService.LockSeats(ctx, bigTrip.ID, []string{"499"},
					fmt.Sprintf("compete-user-%03d", userNum))

				if err == nil {
					atomic.AddInt32(&competitionSuccess, 1)
				} else {
					atomic.AddInt32(&competitionConflict, 1)
				}
			}(i)
		}
		wg2.Wait()

		competeDuration := time.Since(startCompete)
		t.Logf("競合ロック完了: %v", competeDuration)
		t.Logf("  成功: %d, 競合/エラー: %d", competitionSuccess, competitionConflict)

		require.Equal(t, int32(1), competitionSuccess, "競合ロックでは1人だけ成功するべき")
		require.Equal(t, int32(competingUsers-1), competitionConflict, "残りは全て失敗するべき")

		// 4. 最終結果サマリー
		t.Log("=================================================")
		t.Log("ベンチマーク結果サマリー")
		t.Log("=================================================")
		t.Logf("総便数: %d", totalTrips)
		t.Logf("便作成: %v (%.0f 便/秒)", createDuration, createRate)
		t.Logf("並行ロック (%d人): %v (%.0f ロック/秒)", concurrentUsers, lockDuration, lockRate)
		t.Logf("競合ロック (%d人→1人成功): %v", competingUsers, competeDuration)
		t.Log("=================================================")
	})
}

// BenchmarkTripQueries は運行便クエリのベンチマークを計測
func BenchmarkTripQueries(b *testing.B) {
	cfg := config.Load()
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		b.Skipf("DB接続エラー: %v", err)
	}
	defer db.Close()

	var lockManager *redisinfra.LockManager
	redisClient := redisinfra.NewClient(&cfg.Redis)
	if err := redisinfra.Ping(context.Background(), redisClient); err == nil {
		defer redisClient.Close()
		lockManager = redisinfra.NewLockManager(redisClient)
	}

	txManager := postgres.NewTxManager(db)
	tripRepo := postgres.NewTripRepository(db)
	tripService := NewTripService(txManager, tripRepo, lockManager, nil)

	ctx := context.Background()

	// テストデータ準備
	tr, err := tripService.ScheduleTrip(ctx, ScheduleTripInput{
		BusNumber:   "KA-00-BM-0001",
		Origin:      "Bangalore",
		Destination: "Goa",
		DepartureAt: time.Now().Add(120 * time.Hour),
		ArrivalAt:   time.Now().Add(134 * time.Hour),
		Fare:        1500,
		Capacity:    50,
	})
	if err != nil {
		b.Skipf("運行便作成エラー: %v", err)
	}

	b.Run("GetTrip", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			tripService.GetTrip(ctx, tr.ID)
		}
	})

	b.Run("CountAvailableSeats", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			tripService.CountAvailableSeats(ctx, tr.ID)
		}
	})
}
