// Copyright The Rye Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the process-wide free-space cache as
// Prometheus metrics through the standard Describe/Collect collector
// shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryedb/ryecore/internal/diskvol"
	"github.com/ryedb/ryecore/internal/volcache"
)

const namespace = "ryecore"

// Collector adapts a volcache.Cache into a prometheus.Collector. It reports
// the per-purpose aggregates the cache maintains, labeled by purpose, for
// every purpose with at least one cached volume, plus the
// need_add_generic_volume flag the allocator latches when a page allocation
// drives the GENERIC aggregate below the configured threshold,
// so an operator can alert on it directly instead of re-deriving it from
// the raw free-page gauge.
type Collector struct {
	cache *volcache.Cache

	purposeFreePages    *prometheus.Desc
	purposeTotalPages   *prometheus.Desc
	purposeVolumes      *prometheus.Desc
	autoExtendVolid     *prometheus.Desc
	needAddGenericVolume *prometheus.Desc
}

// NewCollector returns a Collector reading live aggregates from cache. The
// cache itself is never mutated by Collect — this is a read-only exposer.
func NewCollector(cache *volcache.Cache) *Collector {
	return &Collector{
		cache: cache,
		purposeFreePages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "purpose_free_pages"),
			"Free-page hint aggregate for one volume purpose.",
			[]string{"purpose"}, nil,
		),
		purposeTotalPages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "purpose_total_pages"),
			"Total-page aggregate for one volume purpose.",
			[]string{"purpose"}, nil,
		),
		purposeVolumes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "purpose_volumes"),
			"Number of volumes currently cached under one purpose.",
			[]string{"purpose"}, nil,
		),
		autoExtendVolid: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "auto_extend_volid"),
			"The GENERIC volid currently registered for auto-extension, or 0 if none is registered.",
			nil, nil,
		),
		needAddGenericVolume: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "need_add_generic_volume"),
			"1 if the most recent page allocation left the GENERIC free-page aggregate below the configured threshold, 0 otherwise.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.purposeFreePages
	ch <- c.purposeTotalPages
	ch <- c.purposeVolumes
	ch <- c.autoExtendVolid
	ch <- c.needAddGenericVolume
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for p := diskvol.PermData; p <= diskvol.PurposeUnknown; p++ {
		agg := c.cache.Aggregate(p)
		if agg.NVols == 0 {
			continue
		}
		label := p.String()
		ch <- prometheus.MustNewConstMetric(c.purposeFreePages, prometheus.GaugeValue, float64(agg.Free), label)
		ch <- prometheus.MustNewConstMetric(c.purposeTotalPages, prometheus.GaugeValue, float64(agg.Total), label)
		ch <- prometheus.MustNewConstMetric(c.purposeVolumes, prometheus.GaugeValue, float64(agg.NVols), label)
	}

	volid, _ := c.cache.AutoExtendVolid()
	ch <- prometheus.MustNewConstMetric(c.autoExtendVolid, prometheus.GaugeValue, float64(volid))

	needAdd := 0.0
	if c.cache.NeedAddGenericVolume() {
		needAdd = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.needAddGenericVolume, prometheus.GaugeValue, needAdd)
}
