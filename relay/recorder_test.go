package relay_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

var _ = Describe("Recorder", func() {
	var (
		enqueuer *recordingEnqueuer
		recorder *relay.Recorder
	)

	BeforeEach(func() {
		enqueuer = &recordingEnqueuer{}
		recorder = relay.NewRecorder(relay.RecorderConfig{
			Enqueuer:  enqueuer,
			TeeBuffer: 2,
			Logger:    slog.New(slog.DiscardHandler),
		})
	})

	It("returns the stream to the caller and persists the full completion", func() {
		src := newFragmentSource(deltaRecord("Hel") + deltaRecord("lo") + stopRecord)
		fg := recorder.Record(relay.NewTranscoder(src), worker.Job{ConversationID: "conv-1", Model: "m"})

		out, err := drainString(fg)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Hello"))

		recorder.Wait()
		jobs := enqueuer.Jobs()
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Content).To(Equal("Hello"))
		Expect(jobs[0].Role).To(Equal("assistant"))
		Expect(jobs[0].ConversationID).To(Equal("conv-1"))
		Expect(jobs[0].Model).To(Equal("m"))
	})

	It("always records the completion as the assistant", func() {
		fg := recorder.Record(newSliceStream("x"), worker.Job{Role: "user"})
		Expect(fg.Close()).To(Succeed())

		recorder.Wait()
		Expect(enqueuer.Jobs()[0].Role).To(Equal("assistant"))
	})

	It("keeps draining after the client goes away", func() {
		chunks := numbered(40)
		fg := recorder.Record(newSliceStream(chunks...), worker.Job{})

		first, err := fg.Next(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(first)).To(Equal("c0"))
		Expect(fg.Close()).To(Succeed())

		recorder.Wait()
		jobs := enqueuer.Jobs()
		Expect(jobs).To(HaveLen(1))
		Expect(jobs[0].Content).To(Equal(strings.Join(chunks, "")))
	})

	It("persists exactly what the foreground saw", func() {
		input := ""
		for _, c := range numbered(25) {
			input += deltaRecord(c)
		}
		input += stopRecord

		fg := recorder.Record(relay.NewTranscoder(newFragmentSource(splitEvery(input, 11)...)), worker.Job{})
		out, err := drainString(fg)
		Expect(err).NotTo(HaveOccurred())

		recorder.Wait()
		Expect(enqueuer.Jobs()[0].Content).To(Equal(out))
	})

	It("does not persist a failed stream", func() {
		src := newSliceStream("partial")
		src.err = errors.New("upstream went away")
		fg := recorder.Record(src, worker.Job{})

		out, err := drainString(fg)
		Expect(out).To(Equal("partial"))
		Expect(err).To(MatchError("upstream went away"))

		recorder.Wait()
		Expect(enqueuer.Jobs()).To(BeEmpty())
	})

	It("persists an empty completion when the stream closes without content", func() {
		fg := recorder.Record(relay.NewTranscoder(newFragmentSource(stopRecord)), worker.Job{})
		_, err := drainString(fg)
		Expect(err).NotTo(HaveOccurred())

		recorder.Wait()
		Expect(enqueuer.Jobs()).To(HaveLen(1))
		Expect(enqueuer.Jobs()[0].Content).To(BeEmpty())
	})
})
