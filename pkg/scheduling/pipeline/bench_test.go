package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
)

func benchConsumer() Consumer[int] {
	return ConsumerFunc[int](func(ctx context.Context, p *page.Page[int]) error {
		s := 0
		for _, v := range p.Items {
			s += v
		}
		_ = s
		return nil
	})
}

func BenchmarkRun(b *testing.B) {
	configs := []struct {
		pages, threads int
	}{
		{1, 1},
		{4, 2},
		{40, 4},
		{80, 8},
	}

	for _, c := range configs {
		b.Run(fmt.Sprintf("pages=%d/threads=%d", c.pages, c.threads), func(b *testing.B) {
			p, err := NewWithConfig(Config[int]{
				MaxPages:   c.pages,
				MaxThreads: c.threads,
				Producer:   &pagedSource{pages: 1, size: 1},
				Consumer:   benchConsumer(),
			})
			if err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				_ = p.SetProducer(&pagedSource{pages: 256, size: 128})
				b.StartTimer()

				if err := p.Run(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDiscipline(b *testing.B) {
	for _, d := range []page.Discipline{page.LIFO, page.FIFO} {
		b.Run(d.String(), func(b *testing.B) {
			p, err := NewWithConfig(Config[int]{
				MaxPages:   32,
				MaxThreads: 4,
				Discipline: d,
				Producer:   &pagedSource{pages: 1, size: 1},
				Consumer:   benchConsumer(),
			})
			if err != nil {
				b.Fatal(err)
			}

			for i := 0; i < b.N; i++ {
				_ = p.SetProducer(&pagedSource{pages: 128, size: 64})
				if err := p.Run(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
