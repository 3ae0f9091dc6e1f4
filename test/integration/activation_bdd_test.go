//go:build integration

package integration

import (
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/daemon"
	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
	"github.com/eliteGoblin/focusd/schedmon/internal/infra"
	"github.com/eliteGoblin/focusd/schedmon/internal/usecase"
)

// recordingShield captures Apply/Clear calls instead of touching processes.
type recordingShield struct {
	mu      sync.Mutex
	applied bool
	current domain.ResourceSelection
	applies int
}

func (s *recordingShield) Apply(sel domain.ResourceSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = true
	s.current = sel
	s.applies++
	return nil
}

func (s *recordingShield) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = false
	s.current = domain.ResourceSelection{}
	return nil
}

var _ = Describe("Schedule Activation", func() {
	var (
		dataDir string
		store   *infra.SharedStore
		shield  *recordingShield
		gate    *infra.FileOverrideGate
		engine  *usecase.Engine
		monday9 time.Time
	)

	// 2024-01-01 is a Monday.
	at := func(hour, min int) time.Time {
		return time.Date(2024, 1, 1, hour, min, 0, 0, time.Local)
	}

	reconcile := func(now time.Time) {
		_, err := engine.Reconcile(now)
		Expect(err).NotTo(HaveOccurred())
	}

	addSchedule := func(id string, startMin, endMin int) {
		mode := domain.Mode{
			ID:        "mode-" + id,
			Name:      "Focus " + id,
			Selection: domain.ResourceSelection{ProcessPatterns: []string{"game-" + id}},
		}
		sched := domain.Schedule{
			ID:          id,
			ModeID:      mode.ID,
			StartMinute: startMin,
			EndMinute:   endMin,
			RepeatDays:  []time.Weekday{time.Monday},
			Enabled:     true,
		}
		Expect(store.PutMode(mode)).To(Succeed())
		Expect(store.PutSchedule(sched)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "schedmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		Expect(infra.NewFileKeyProvider(dataDir).StoreKey(key)).To(Succeed())

		store, err = infra.NewSharedStore(dataDir, key)
		Expect(err).NotTo(HaveOccurred())

		shield = &recordingShield{}
		gate = infra.NewFileOverrideGate(dataDir)
		logger := zap.NewNop()
		engine = usecase.NewEngine(store, infra.NewStoreModeResolver(store), shield, gate, logger)
		monday9 = at(9, 0)
	})

	AfterEach(func() {
		store.Close()
		os.RemoveAll(dataDir)
	})

	Describe("Reconcile", func() {
		Context("when one schedule is in window", func() {
			It("activates it and applies its resource set", func() {
				addSchedule("a", 8*60, 17*60)

				reconcile(monday9)

				id, err := store.ActiveScheduleID()
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(Equal("a"))
				Expect(shield.applied).To(BeTrue())
				Expect(shield.current.ProcessPatterns).To(ConsistOf("game-a"))
			})

			It("is idempotent across repeated runs", func() {
				addSchedule("a", 8*60, 17*60)

				for i := 0; i < 5; i++ {
					reconcile(monday9)
				}

				id, err := store.ActiveScheduleID()
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(Equal("a"))
				Expect(shield.applied).To(BeTrue())
			})
		})

		Context("when two windows overlap", func() {
			It("keeps the already active schedule", func() {
				addSchedule("late", 9*60, 18*60)
				reconcile(monday9)

				addSchedule("early", 8*60, 17*60)
				reconcile(at(9, 30))

				id, err := store.ActiveScheduleID()
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(Equal("late"))
			})
		})

		Context("when a manual session is running", func() {
			It("clears the schedule slot without activating", func() {
				addSchedule("a", 8*60, 17*60)
				Expect(os.WriteFile(gate.MarkerPath(), nil, 0600)).To(Succeed())

				reconcile(monday9)

				id, err := store.ActiveScheduleID()
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(BeEmpty())
				Expect(shield.applied).To(BeFalse())
			})
		})
	})

	Describe("EndActiveSchedule", func() {
		It("suppresses the schedule for the rest of the day", func() {
			addSchedule("a", 8*60, 17*60)
			reconcile(monday9)

			Expect(engine.EndActiveSchedule(at(10, 0))).To(Succeed())

			id, err := store.ActiveScheduleID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeEmpty())
			Expect(shield.applied).To(BeFalse())

			// Still suppressed at a later run the same day.
			reconcile(at(12, 0))
			id, err = store.ActiveScheduleID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeEmpty())
		})

		It("hands off to the next overlapping schedule", func() {
			addSchedule("a", 8*60, 17*60)
			addSchedule("b", 9*60, 18*60)
			reconcile(monday9)

			Expect(engine.EndActiveSchedule(at(9, 30))).To(Succeed())

			id, err := store.ActiveScheduleID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("b"))
			Expect(shield.current.ProcessPatterns).To(ConsistOf("game-b"))
		})
	})

	Describe("Monitor process", func() {
		It("converges with the primary through the shared store", func() {
			addSchedule("a", 8*60, 17*60)

			// The monitor process opens its own store over the same file.
			key, err := infra.NewFileKeyProvider(dataDir).GetKey()
			Expect(err).NotTo(HaveOccurred())
			monitorStore, err := infra.NewSharedStore(dataDir, key)
			Expect(err).NotTo(HaveOccurred())
			defer monitorStore.Close()

			runner := daemon.NewMonitorRunner(monitorStore, shield, gate, zap.NewNop())
			Expect(runner.RunOnce("a", daemon.EventWindowStart, at(8, 0))).To(Succeed())

			// The primary sees the activation the monitor wrote.
			id, err := store.ActiveScheduleID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("a"))

			// The primary's next reconcile keeps it.
			reconcile(monday9)
			id, err = store.ActiveScheduleID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("a"))
		})

		It("releases the slot on window end", func() {
			addSchedule("a", 8*60, 17*60)
			reconcile(monday9)

			runner := daemon.NewMonitorRunner(store, shield, gate, zap.NewNop())
			Expect(runner.RunOnce("a", daemon.EventWindowEnd, at(17, 0))).To(Succeed())

			id, err := store.ActiveScheduleID()
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeEmpty())
			Expect(shield.applied).To(BeFalse())
		})
	})
})
