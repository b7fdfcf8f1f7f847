package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// This file normalizes the provider-specific response payloads into
// WeatherSample/WeatherForecast. The wire shapes are fixed by the upstream
// APIs: the primary provider wraps everything in {data: {timelines: ...}} or
// {data: {values: ...}}, the fallback provider speaks GeoJSON
// {features: [{properties: ...}]}. A payload that decodes but carries no
// usable intervals is a parse error, not a retryable condition.

func ParseForecastTomorrow(body io.Reader, location FieldLocation) (WeatherForecast, error) {
	var response ResponseForecastTomorrow
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return WeatherForecast{}, fmt.Errorf("%w: %v", ErrProviderResponseInvalid, err)
	}
	if len(response.Data.Timelines) == 0 || len(response.Data.Timelines[0].Intervals) == 0 {
		return WeatherForecast{}, fmt.Errorf("%w: no timeline intervals", ErrProviderResponseInvalid)
	}

	intervals := response.Data.Timelines[0].Intervals
	samples := make([]WeatherSample, 0, len(intervals))
	for _, interval := range intervals {
		samples = append(samples, tomorrowValuesToSample(interval.Values, interval.StartTime, location))
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })

	return WeatherForecast{
		LocationID: location.FieldID,
		SourceAPI:  "Tomorrow.io API",
		Samples:    samples,
	}, nil
}

func ParseCurrentWeatherTomorrow(body io.Reader, location FieldLocation) (WeatherSample, error) {
	var response ResponseRealtimeTomorrow
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return WeatherSample{}, fmt.Errorf("%w: %v", ErrProviderResponseInvalid, err)
	}
	if response.Data.Time.IsZero() {
		return WeatherSample{}, fmt.Errorf("%w: missing observation time", ErrProviderResponseInvalid)
	}
	return tomorrowValuesToSample(response.Data.Values, response.Data.Time, location), nil
}

func ParseForecastNWS(body io.Reader, location FieldLocation) (WeatherForecast, error) {
	var response ResponseGeoJSONNWS
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return WeatherForecast{}, fmt.Errorf("%w: %v", ErrProviderResponseInvalid, err)
	}
	if len(response.Features) == 0 {
		return WeatherForecast{}, fmt.Errorf("%w: empty feature collection", ErrProviderResponseInvalid)
	}

	samples := make([]WeatherSample, 0, len(response.Features))
	for _, feature := range response.Features {
		samples = append(samples, nwsPropertiesToSample(feature.Properties, location))
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })

	return WeatherForecast{
		LocationID: location.FieldID,
		SourceAPI:  "NWS API",
		Samples:    samples,
	}, nil
}

func ParseCurrentWeatherNWS(body io.Reader, location FieldLocation) (WeatherSample, error) {
	var response ResponseGeoJSONNWS
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return WeatherSample{}, fmt.Errorf("%w: %v", ErrProviderResponseInvalid, err)
	}
	if len(response.Features) == 0 {
		return WeatherSample{}, fmt.Errorf("%w: empty feature collection", ErrProviderResponseInvalid)
	}
	return nwsPropertiesToSample(response.Features[0].Properties, location), nil
}

func tomorrowValuesToSample(values tomorrowValues, ts time.Time, location FieldLocation) WeatherSample {
	sample := WeatherSample{
		LocationID:         location.FieldID,
		Timestamp:          ts,
		SourceAPI:          "Tomorrow.io API",
		Temperature:        values.Temperature,
		TemperatureMin:     values.TemperatureMin,
		TemperatureMax:     values.TemperatureMax,
		Humidity:           values.Humidity,
		Precipitation:      values.PrecipitationIntensity,
		WindSpeed:          values.WindSpeed,
		WindDirection:      values.WindDirection,
		DewPoint:           values.DewPoint,
		LeafWetness:        values.LeafWetness,
		Evapotranspiration: values.Evapotranspiration,
	}
	if values.WeatherCode != nil {
		sample.ConditionCode = *values.WeatherCode
		sample.Description = interpretWeatherCode(*values.WeatherCode)
	}
	return sample
}

func nwsPropertiesToSample(properties nwsProperties, location FieldLocation) WeatherSample {
	return WeatherSample{
		LocationID:     location.FieldID,
		Timestamp:      properties.Timestamp,
		SourceAPI:      "NWS API",
		Temperature:    properties.Temperature,
		TemperatureMin: properties.MinTemperature,
		TemperatureMax: properties.MaxTemperature,
		Humidity:       properties.RelativeHumidity,
		Precipitation:  properties.PrecipitationAmount,
		WindSpeed:      properties.WindSpeed,
		WindDirection:  properties.WindDirection,
		DewPoint:       properties.Dewpoint,
		Description:    properties.TextDescription,
	}
}

// interpretWeatherCode maps the primary provider's coded conditions to a
// human-readable description.
func interpretWeatherCode(code int32) string {
	switch code {
	case 1000:
		return "Clear"
	case 1100, 1101, 1102:
		return "Partly Cloudy"
	case 1001:
		return "Cloudy"
	case 2000, 2100:
		return "Fog"
	case 4000:
		return "Drizzle"
	case 4001, 4200, 4201:
		return "Rain"
	case 5000, 5001, 5100, 5101:
		return "Snow"
	case 6000, 6001, 6200, 6201:
		return "Freezing Rain"
	case 8000:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}

type ResponseForecastTomorrow struct {
	Data struct {
		Timelines []struct {
			Timestep  string `json:"timestep"`
			Intervals []struct {
				StartTime time.Time      `json:"startTime"`
				Values    tomorrowValues `json:"values"`
			} `json:"intervals"`
		} `json:"timelines"`
	} `json:"data"`
}

type ResponseRealtimeTomorrow struct {
	Data struct {
		Time   time.Time      `json:"time"`
		Values tomorrowValues `json:"values"`
	} `json:"data"`
}

type tomorrowValues struct {
	Temperature            *float64 `json:"temperature,omitempty"`
	TemperatureMin         *float64 `json:"temperatureMin,omitempty"`
	TemperatureMax         *float64 `json:"temperatureMax,omitempty"`
	Humidity               *float64 `json:"humidity,omitempty"`
	PrecipitationIntensity *float64 `json:"precipitationIntensity,omitempty"`
	WindSpeed              *float64 `json:"windSpeed,omitempty"`
	WindDirection          *float64 `json:"windDirection,omitempty"`
	DewPoint               *float64 `json:"dewPoint,omitempty"`
	LeafWetness            *float64 `json:"leafWetness,omitempty"`
	Evapotranspiration     *float64 `json:"evapotranspiration,omitempty"`
	WeatherCode            *int32   `json:"weatherCode,omitempty"`
}

type ResponseGeoJSONNWS struct {
	Type     string `json:"type"`
	Features []struct {
		Properties nwsProperties `json:"properties"`
	} `json:"features"`
}

type nwsProperties struct {
	Timestamp           time.Time `json:"timestamp"`
	Temperature         *float64  `json:"temperature,omitempty"`
	MinTemperature      *float64  `json:"minTemperature,omitempty"`
	MaxTemperature      *float64  `json:"maxTemperature,omitempty"`
	RelativeHumidity    *float64  `json:"relativeHumidity,omitempty"`
	PrecipitationAmount *float64  `json:"precipitationAmount,omitempty"`
	WindSpeed           *float64  `json:"windSpeed,omitempty"`
	WindDirection       *float64  `json:"windDirection,omitempty"`
	Dewpoint            *float64  `json:"dewpoint,omitempty"`
	TextDescription     string    `json:"textDescription,omitempty"`
}
