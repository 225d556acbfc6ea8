package task_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/control"
	"github.com/san-kum/bottlecap/internal/task"
)

var _ = Describe("Table", func() {
	DescribeTable("shared transitions",
		func(from task.Phase, on control.Verdict, to task.Phase) {
			for _, table := range []task.Table{task.DeployedTable(), task.RewindTable()} {
				tr, ok := table.Next(from, on)
				Expect(ok).To(BeTrue())
				Expect(tr.To).To(Equal(to))
				Expect(tr.Message).NotTo(BeEmpty())
			}
		},
		Entry("sync", task.Synchronizing, control.Finished, task.JointInit),
		Entry("init", task.JointInit, control.Finished, task.Align),
		Entry("align", task.Align, control.Finished, task.CheckAlign),
		Entry("check failed", task.CheckAlign, control.Failed, task.Align),
		Entry("rewind", task.Rewind, control.Finished, task.Screw),
	)

	It("loops check align back to align when deployed", func() {
		tr, ok := task.DeployedTable().Next(task.CheckAlign, control.Finished)
		Expect(ok).To(BeTrue())
		Expect(tr.To).To(Equal(task.Align))
	})

	It("proceeds from check align to rewind in the rewind topology", func() {
		tr, ok := task.RewindTable().Next(task.CheckAlign, control.Finished)
		Expect(ok).To(BeTrue())
		Expect(tr.To).To(Equal(task.Rewind))
	})

	It("never leaves screw and stays on running", func() {
		for _, table := range []task.Table{task.DeployedTable(), task.RewindTable()} {
			for _, v := range []control.Verdict{control.Running, control.Finished, control.Failed} {
				_, ok := table.Next(task.Screw, v)
				Expect(ok).To(BeFalse())
			}
			for p := task.Synchronizing; p < task.Invalid; p++ {
				_, ok := table.Next(p, control.Running)
				Expect(ok).To(BeFalse())
			}
		}
	})

	It("validates the built-in tables", func() {
		Expect(task.DeployedTable().Validate()).To(Succeed())
		Expect(task.RewindTable().Validate()).To(Succeed())
	})

	It("rejects duplicate and invalid transitions", func() {
		dup := append(task.DeployedTable(), task.Transition{From: task.Align, On: control.Finished, To: task.Screw})
		Expect(dup.Validate()).To(MatchError(config.ErrInvalid))

		bad := task.Table{{From: task.Align, On: control.Failed, To: task.Invalid}}
		Expect(bad.Validate()).To(MatchError(config.ErrInvalid))
	})

	It("selects a table from configuration", func() {
		table, err := task.TableFor(config.CheckAlignToRewind)
		Expect(err).NotTo(HaveOccurred())
		Expect(table).To(Equal(task.RewindTable()))

		_, err = task.TableFor("screw")
		Expect(err).To(MatchError(config.ErrInvalid))
	})
})

var _ = Describe("Phase", func() {
	It("round trips through its name", func() {
		for p := task.Synchronizing; p <= task.Invalid; p++ {
			parsed, err := task.ParsePhase(p.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(p))
		}
	})

	It("parses case-insensitively", func() {
		p, err := task.ParsePhase(" check_align ")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(task.CheckAlign))
	})

	It("rejects unknown names", func() {
		_, err := task.ParsePhase("DANCE")
		Expect(err).To(MatchError(task.ErrInvalidPhase))
	})

	It("formats out-of-range phases", func() {
		Expect(task.Phase(42).String()).To(Equal("Phase(42)"))
	})
})
