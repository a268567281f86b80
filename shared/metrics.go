package shared

import (
	"sync"
	"time"
)

// ServiceMetrics tracks performance and success metrics for services
type ServiceMetrics struct {
	ServiceName           string                 `json:"service_name"`
	TotalRequests         int64                  `json:"total_requests"`
	SuccessfulRequests    int64                  `json:"successful_requests"`
	FailedRequests        int64                  `json:"failed_requests"`
	TotalProcessingTime   time.Duration          `json:"total_processing_time"`
	AverageProcessingTime time.Duration          `json:"average_processing_time"`
	LastUpdated           time.Time              `json:"last_updated"`
	CustomMetrics         map[string]interface{} `json:"custom_metrics"`
	mutex                 sync.RWMutex
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		ServiceName:   serviceName,
		LastUpdated:   time.Now(),
		CustomMetrics: make(map[string]interface{}),
	}
}

// RecordRequest records a request with its success status and processing time
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRequests++
	m.TotalProcessingTime += processingTime
	m.AverageProcessingTime = time.Duration(int64(m.TotalProcessingTime) / m.TotalRequests)

	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}

	m.LastUpdated = time.Now()
}

// GetSuccessRate returns the success rate as a percentage
func (m *ServiceMetrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalRequests == 0 {
		return 0.0
	}

	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
}

// SetCustomMetric sets a custom metric value
func (m *ServiceMetrics) SetCustomMetric(key string, value interface{}) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.CustomMetrics[key] = value
	m.LastUpdated = time.Now()
}

// IncrementCustomCounter increments a custom counter metric
func (m *ServiceMetrics) IncrementCustomCounter(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if current, exists := m.CustomMetrics[key]; exists {
		if count, ok := current.(int64); ok {
			m.CustomMetrics[key] = count + 1
			m.LastUpdated = time.Now()
			return
		}
	}
	m.CustomMetrics[key] = int64(1)
	m.LastUpdated = time.Now()
}

// Summary returns a point-in-time copy of the tracked metrics for reporting
func (m *ServiceMetrics) Summary() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	custom := make(map[string]interface{}, len(m.CustomMetrics))
	for k, v := range m.CustomMetrics {
		custom[k] = v
	}

	successRate := 0.0
	if m.TotalRequests > 0 {
		successRate = float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
	}

	return map[string]interface{}{
		"service_name":            m.ServiceName,
		"total_requests":          m.TotalRequests,
		"successful_requests":     m.SuccessfulRequests,
		"failed_requests":         m.FailedRequests,
		"success_rate":            successRate,
		"average_processing_time": m.AverageProcessingTime.String(),
		"last_updated":            m.LastUpdated,
		"custom_metrics":          custom,
	}
}

// Reset clears all tracked counters
func (m *ServiceMetrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRequests = 0
	m.SuccessfulRequests = 0
	m.FailedRequests = 0
	m.TotalProcessingTime = 0
	m.AverageProcessingTime = 0
	m.CustomMetrics = make(map[string]interface{})
	m.LastUpdated = time.Now()
}
