package workflows

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jaivgar/workflow-executor/arrowhead"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/statemachine"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

const (
	MillingWorkflowName = "milling"

	SensorService   = "sensorvalue"
	ActuatorService = "actuatorvalue"

	NumberOfMillingParam = "numberOfMilling"
	TimeOfMillingParam   = "timeOfMillingInMilis"

	defaultNumberOfMilling = 1
	defaultTimeOfMilling   = 1000
	defaultPollInterval    = 500 * time.Millisecond
)

const (
	servicesToAddressKey = "servicesToAddress"
	slider1OriginKey     = "Slider 1 at starting position"
	slider2OriginKey     = "Slider 2 at starting position"
	millingDoneKey       = "Milling done"
	productAtOutputKey   = "Product at output location"

	servicesFoundEvent    = "Services found"
	initFailureEvent      = "Init Failure"
	waitingProductEvent   = "Waiting for product"
	productReadyEvent     = "Product ready"
	inputConveyorEvent    = "Product moving in conveyor belt"
	atMillingEvent        = "Product arrived at milling"
	millingEndedEvent     = "Product ended milling operation"
	outputConveyorEvent   = "Product moving in output conveyor belt"
	productDoneEvent      = "Product ended manufacturing"
	workErrorMillingEvent = "Work error"
)

// Sensor and actuator numbers of the factory station.
const (
	sensorSlider1Origin = 2
	sensorSlider2Origin = 4
	sensorInputEnd      = 5
	sensorOutputEnd     = 8
	sensorProductIn     = 7

	actuatorInputConveyor  = 5
	actuatorMillingMotor   = 7
	actuatorOutputConveyor = 8
	actuatorCount          = 10
)

// FactoryDevice is the reply of the factory sensor and actuator services.
type FactoryDevice struct {
	ID         string `json:"id"`
	Definition string `json:"definition"`
	Value      string `json:"value"`
}

type MillingOption func(*milling)

// WithPollInterval sets the pause between two reads of a sensor the workflow
// is waiting on.
func WithPollInterval(d time.Duration) MillingOption {
	return func(m *milling) {
		m.poll = d
	}
}

// Milling drives a factory station: it waits for a product on the input
// conveyor, mills it numberOfMilling times for timeOfMillingInMilis each and
// moves it to the output conveyor. Any failure stops every actuator.
func Milling(client *arrowhead.Client, opts ...MillingOption) (*workflow.Workflow, error) {
	m := &milling{client: client, poll: defaultPollInterval}
	for _, opt := range opts {
		opt(m)
	}
	sm, err := statemachine.New(
		[]statemachine.State{
			statemachine.NewState("Find factory services and input config", 0),
			statemachine.NewState("Detect product", 6, 1),
			statemachine.NewState("Product going through input conveyor", 6, 1, 2),
			statemachine.NewState("Product at milling station", 6, 2, 3),
			statemachine.NewState("Product going through output conveyor", 6, 4),
			statemachine.NewState("Product finished, send results", 6, 4, 5),
			statemachine.NewState("End workflow successfully"),
			statemachine.NewState("End workflow with errors"),
		},
		[]statemachine.Transition{
			statemachine.NewTransition(nil, nil, statemachine.ActionFunc(m.init), 1),
			statemachine.NewTransition(statemachine.AnyEvent(servicesFoundEvent, waitingProductEvent), nil,
				statemachine.ActionFunc(m.detectProduct), 2),
			statemachine.NewTransition(statemachine.AnyEvent(productReadyEvent, inputConveyorEvent), nil,
				statemachine.ActionFunc(m.inputConveyor), 3),
			statemachine.NewTransition(statemachine.OnEvent(atMillingEvent), nil,
				statemachine.ActionFunc(m.mill), 4),
			statemachine.NewTransition(statemachine.AnyEvent(millingEndedEvent, outputConveyorEvent), nil,
				statemachine.ActionFunc(m.outputConveyor), 5),
			statemachine.NewTransition(statemachine.OnEvent(productDoneEvent), nil,
				statemachine.ActionFunc(m.finish), 6),
			statemachine.NewTransition(statemachine.AnyEvent(initFailureEvent, workErrorMillingEvent), nil,
				statemachine.ActionFunc(m.abort), 7),
		},
	)
	if err != nil {
		return nil, err
	}
	w, err := workflow.New(MillingWorkflowName, workflow.ConfigSchema{
		NumberOfMillingParam: {"Integer"},
		TimeOfMillingParam:   {"Integer"},
	}, sm)
	if err != nil {
		return nil, err
	}
	w.Description = "Mills one product in the factory station"
	return w, nil
}

type milling struct {
	client *arrowhead.Client
	poll   time.Duration
}

func (m *milling) init(env statemachine.Environment, events statemachine.Events) {
	for _, param := range []struct {
		key string
		def int64
	}{{NumberOfMillingParam, defaultNumberOfMilling}, {TimeOfMillingParam, defaultTimeOfMilling}} {
		n, err := positiveInt(env, param.key, param.def)
		if err != nil {
			m.failInit(env, events, err.Error())
			return
		}
		env.Set(param.key, statemachine.Int(n))
	}
	found, err := orchestrateAll(m.client, []string{SensorService, ActuatorService})
	if err != nil {
		logger.Warn("factory services not found", zap.Error(err))
		m.failInit(env, events, "Services needed for Milling not available in workstation")
		return
	}
	env.Set(servicesToAddressKey, statemachine.Any(found))

	for _, slider := range []struct {
		sensor int
		key    string
	}{{sensorSlider1Origin, slider1OriginKey}, {sensorSlider2Origin, slider2OriginKey}} {
		ok, err := m.sensor(env, slider.sensor)
		if err != nil {
			m.failInit(env, events, err.Error())
			return
		}
		if !ok {
			m.failInit(env, events, slider.key+" = FALSE")
			return
		}
		env.Set(slider.key, statemachine.Bool(true))
	}
	env.Set(millingDoneKey, statemachine.Bool(false))
	env.Set(productAtOutputKey, statemachine.Bool(false))
	events.Emit(servicesFoundEvent)
}

func (m *milling) failInit(env statemachine.Environment, events statemachine.Events, msg string) {
	env.Set(workflow.ErrorMessageKey, statemachine.String(msg))
	events.Emit(initFailureEvent)
}

// positiveInt reads a configuration parameter given either as a number or as
// a string, falling back to def when it is absent.
func positiveInt(env statemachine.Environment, key string, def int64) (int64, error) {
	v, ok := env.Get(key)
	if !ok {
		logger.Info("input configuration is missing, using default", zap.String("parameter", key), zap.Int64("default", def))
		return def, nil
	}
	n, ok := v.AsInt()
	if !ok {
		s, isString := v.AsString()
		parsed, err := strconv.ParseInt(s, 10, 64)
		if !isString || err != nil {
			return 0, fmt.Errorf("input configuration with wrong format: %s can not be parsed to an integer", key)
		}
		n = parsed
	}
	if n < 0 {
		return 0, fmt.Errorf("input configuration with wrong format: %s can not be negative", key)
	}
	return n, nil
}

// waitFor reads sensor and emits ready when it reports want. Otherwise it
// pauses and emits waiting so the same transition polls again.
func (m *milling) waitFor(env statemachine.Environment, events statemachine.Events, sensor int, want bool, ready, waiting string) bool {
	got, err := m.sensor(env, sensor)
	if err != nil {
		m.failWork(env, events, err)
		return false
	}
	if got != want {
		time.Sleep(m.poll)
		events.Emit(waiting)
		return false
	}
	events.Emit(ready)
	return true
}

func (m *milling) detectProduct(env statemachine.Environment, events statemachine.Events) {
	if m.waitFor(env, events, sensorProductIn, false, productReadyEvent, waitingProductEvent) {
		logger.Debug("product detected, starting conveyor belt")
		m.actuate(env, events, actuatorInputConveyor, true)
	}
}

func (m *milling) inputConveyor(env statemachine.Environment, events statemachine.Events) {
	if !m.waitFor(env, events, sensorInputEnd, false, atMillingEvent, inputConveyorEvent) {
		return
	}
	logger.Debug("product detected at end of conveyor belt")
	m.actuate(env, events, actuatorInputConveyor, false)
}

func (m *milling) mill(env statemachine.Environment, events statemachine.Events) {
	n, _ := env.Get(NumberOfMillingParam)
	d, _ := env.Get(TimeOfMillingParam)
	times, _ := n.AsInt()
	millis, _ := d.AsInt()
	for i := int64(0); i < times; i++ {
		if !m.actuate(env, events, actuatorMillingMotor, true) {
			return
		}
		time.Sleep(time.Duration(millis) * time.Millisecond)
		if !m.actuate(env, events, actuatorMillingMotor, false) {
			return
		}
	}
	env.Set(millingDoneKey, statemachine.Bool(true))
	if m.actuate(env, events, actuatorOutputConveyor, true) {
		events.Emit(millingEndedEvent)
	}
}

func (m *milling) outputConveyor(env statemachine.Environment, events statemachine.Events) {
	if !m.waitFor(env, events, sensorOutputEnd, false, productDoneEvent, outputConveyorEvent) {
		return
	}
	m.actuate(env, events, actuatorOutputConveyor, false)
}

func (m *milling) finish(env statemachine.Environment, events statemachine.Events) {
	env.Set(productAtOutputKey, statemachine.Bool(true))
	m.stopFactory(env)
	workflow.SetSuccess(env)
}

func (m *milling) abort(env statemachine.Environment, events statemachine.Events) {
	msg := "milling failed"
	if v, ok := env.Get(workflow.ErrorMessageKey); ok {
		msg = v.String()
	}
	if env.Has(servicesToAddressKey) {
		m.stopFactory(env)
	}
	workflow.SetFailure(env, msg)
}

func (m *milling) failWork(env statemachine.Environment, events statemachine.Events, err error) {
	logger.Warn("factory service call failed", zap.Error(err))
	events.Clear()
	env.Set(workflow.ErrorMessageKey, statemachine.String(err.Error()))
	events.Emit(workErrorMillingEvent)
}

func (m *milling) stopFactory(env statemachine.Environment) {
	for i := 1; i <= actuatorCount; i++ {
		if _, err := m.device(env, ActuatorService, http.MethodPut, fmt.Sprintf("/Q%d/false", i)); err != nil {
			logger.Warn("could not stop actuator", zap.Int("actuator", i), zap.Error(err))
		}
	}
}

func (m *milling) sensor(env statemachine.Environment, n int) (bool, error) {
	return m.device(env, SensorService, http.MethodGet, fmt.Sprintf("/I%d", n))
}

func (m *milling) actuate(env statemachine.Environment, events statemachine.Events, n int, on bool) bool {
	if _, err := m.device(env, ActuatorService, http.MethodPut, fmt.Sprintf("/Q%d/%t", n, on)); err != nil {
		m.failWork(env, events, err)
		return false
	}
	return true
}

func (m *milling) device(env statemachine.Environment, definition, method, path string) (bool, error) {
	found, err := servicesIn(env, servicesToAddressKey)
	if err != nil {
		return false, err
	}
	res, ok := found[definition]
	if !ok {
		return false, fmt.Errorf("service %q was not found", definition)
	}
	var reply FactoryDevice
	if err := consume(m.client, res, arrowhead.ConsumeRequest{Method: method, Path: path}, &reply); err != nil {
		return false, err
	}
	return strconv.ParseBool(reply.Value)
}
