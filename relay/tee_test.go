package relay_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/relay"
)

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("c%d", i)
	}
	return out
}

type branchResult struct {
	chunks []string
	err    error
}

// drainBoth reads both branches concurrently, pausing the slow one between
// reads.
func drainBoth(a, b relay.Stream, slow time.Duration) (branchResult, branchResult) {
	var (
		wg   sync.WaitGroup
		resA branchResult
		resB branchResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		resA.chunks, resA.err = drain(a)
	}()
	go func() {
		defer wg.Done()
		for {
			c, err := b.Next(context.Background())
			if err != nil {
				if !errors.Is(err, io.EOF) {
					resB.err = err
				}
				return
			}
			resB.chunks = append(resB.chunks, string(c))
			time.Sleep(slow)
		}
	}()
	wg.Wait()
	return resA, resB
}

var _ = Describe("Tee", func() {
	It("gives both branches the identical ordered sequence", func() {
		src := newSliceStream(numbered(50)...)
		a, b := relay.Tee(src, 4)

		resA, resB := drainBoth(a, b, time.Millisecond)
		Expect(resA.err).NotTo(HaveOccurred())
		Expect(resB.err).NotTo(HaveOccurred())
		Expect(resA.chunks).To(Equal(numbered(50)))
		Expect(resB.chunks).To(Equal(resA.chunks))
	})

	It("lets one branch be read to completion first when the buffer is large enough", func() {
		src := newSliceStream("Hel", "lo")
		a, b := relay.Tee(src, relay.DefaultTeeBuffer)

		outA, errA := drainString(a)
		outB, errB := drainString(b)
		Expect(errA).NotTo(HaveOccurred())
		Expect(errB).NotTo(HaveOccurred())
		Expect(outA).To(Equal("Hello"))
		Expect(outB).To(Equal("Hello"))
	})

	It("delivers the same terminal error to both branches", func() {
		boom := errors.New("boom")
		src := newSliceStream("a", "b")
		src.err = boom
		a, b := relay.Tee(src, 2)

		resA, resB := drainBoth(a, b, 0)
		Expect(resA.chunks).To(Equal([]string{"a", "b"}))
		Expect(resB.chunks).To(Equal([]string{"a", "b"}))
		Expect(resA.err).To(MatchError(boom))
		Expect(resB.err).To(MatchError(boom))
		Eventually(src.closed.Load).Should(BeTrue())
	})

	It("stops pulling from the source when the buffer is full", func() {
		src := newSliceStream(numbered(20)...)
		a, b := relay.Tee(src, 3)
		defer a.Close()
		defer b.Close()

		Eventually(src.pulls.Load).Should(BeEquivalentTo(3))
		Consistently(src.pulls.Load, 50*time.Millisecond).Should(BeEquivalentTo(3))

		// Only the slowest branch frees space.
		for range 3 {
			_, err := a.Next(context.Background())
			Expect(err).NotTo(HaveOccurred())
		}
		Consistently(src.pulls.Load, 50*time.Millisecond).Should(BeEquivalentTo(3))

		_, err := b.Next(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Eventually(src.pulls.Load).Should(BeEquivalentTo(4))
	})

	It("detaches a closed branch so the other keeps reading", func() {
		src := newSliceStream(numbered(30)...)
		a, b := relay.Tee(src, 2)

		Expect(a.Close()).To(Succeed())
		chunks, err := drain(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal(numbered(30)))
	})

	It("returns ErrStreamClosed from a closed branch", func() {
		a, b := relay.Tee(newSliceStream("x"), 2)
		defer b.Close()

		Expect(a.Close()).To(Succeed())
		Expect(a.Close()).To(Succeed())
		_, err := a.Next(context.Background())
		Expect(err).To(MatchError(relay.ErrStreamClosed))
	})

	It("closes the source once both branches are closed", func() {
		src := newSliceStream()
		src.hang = true
		a, b := relay.Tee(src, 2)

		Expect(a.Close()).To(Succeed())
		Expect(src.closed.Load()).To(BeFalse())

		Expect(b.Close()).To(Succeed())
		Expect(src.closed.Load()).To(BeTrue())
	})

	It("honours the reader's context while waiting", func() {
		src := newSliceStream()
		src.hang = true
		a, b := relay.Tee(src, 2)
		defer a.Close()
		defer b.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := a.Next(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("tees a transcoded stream", func() {
		src := newFragmentSource(splitEvery(deltaRecord("Hel")+deltaRecord("lo")+stopRecord, 7)...)
		a, b := relay.Tee(relay.NewTranscoder(src), 1)

		resA, resB := drainBoth(a, b, time.Millisecond)
		Expect(resA.err).NotTo(HaveOccurred())
		Expect(resB.err).NotTo(HaveOccurred())
		Expect(resA.chunks).To(Equal([]string{"Hel", "lo"}))
		Expect(resB.chunks).To(Equal(resA.chunks))
		Expect(src.isClosed()).To(BeTrue())
	})
})
