package worker

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/proofpilot/pkg/logger"
)

func newTestPool(n uint) *Pool {
	wp, err := NewPool(Config{NumWorkers: n, Logger: logger.Nop()})
	Expect(err).NotTo(HaveOccurred())
	return wp
}

var _ = Describe("Worker Pool", func() {
	Describe("NewPool", func() {
		It("defaults the number of workers", func() {
			wp, err := NewPool(Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(wp.Workers()).To(Equal(int(defaultNumWorkers)))
		})
	})

	Describe("Run", func() {
		It("returns results in input order", func() {
			wp := newTestPool(4)
			items := []int{5, 1, 4, 2, 3}

			results, err := Run(context.Background(), wp, items, func(_ context.Context, n int) int {
				time.Sleep(time.Duration(n) * time.Millisecond)
				return n * 10
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(Equal([]int{50, 10, 40, 20, 30}))
		})

		It("never runs more tasks than workers at once", func() {
			wp := newTestPool(2)
			var inFlight, peak atomic.Int32

			_, err := Run(context.Background(), wp, make([]struct{}, 12), func(_ context.Context, _ struct{}) bool {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return true
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(peak.Load()).To(BeNumerically("<=", 2))
		})

		It("handles an empty batch", func() {
			results, err := Run(context.Background(), newTestPool(1), []string{}, func(_ context.Context, s string) string { return s })
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("stops starting tasks once the context is done", func() {
			wp := newTestPool(1)
			ctx, cancel := context.WithCancel(context.Background())

			results, err := Run(ctx, wp, []int{1, 2, 3}, func(_ context.Context, n int) *int {
				cancel()
				return &n
			})
			Expect(err).To(MatchError(context.Canceled))
			Expect(results[0]).NotTo(BeNil())
			Expect(results[2]).To(BeNil())
		})
	})
})
