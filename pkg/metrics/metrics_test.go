package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncPagesFetched(200)
	m.IncPagesFetched(200)
	m.IncPagesFetched(404)
	m.IncErrorsTotal("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues("404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("not_found")))
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
