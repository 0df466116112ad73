// Package domain models ERA5 pressure-level soundings for recorded tornado
// events and random control points in Germany.
//
// # Data Source
//
// Event rows come from the European Severe Weather Database (ESWD) tornado
// export. Each row carries a UTC event time ("2021-07-04 14:00:00") and a
// WGS-84 latitude/longitude. Profiles are retrieved from the Copernicus Climate
// Data Store dataset "reanalysis-era5-pressure-levels", which publishes one
// analysis per hour, so the minutes and seconds of an event time are dropped
// when building a request.
//
// # Request Conventions
//
// Area:
//
//	ERA5 areas are ordered [north, west, south, east] in degrees.
//	Point requests use a box of ±0.01° around the event, which the archive
//	snaps to the single nearest 0.25° grid cell.
//	Grid requests use the fixed Germany box N 55.09, W 5.87, S 47.27, E 15.04.
//
// Pressure levels:
//
//	All 37 standard levels from 1000 hPa to 1 hPa. Files list them in the
//	order the archive returns them; the loader keeps that order.
//
// Variables:
//
//	t  temperature (K)                 -> temperature (°C)
//	z  geopotential (m² s⁻²)           -> gpt_height, altitude (m)
//	u  eastward wind (m s⁻¹)           -> u_wind
//	v  northward wind (m s⁻¹)          -> v_wind
//	q  specific humidity (kg kg⁻¹)     -> sp_humidity, dew_point (°C)
//
// # Derived Quantities
//
// Vapour pressure and dew point follow the Bolton (1980) form of the Magnus
// formula with pressure in hPa:
//
//	e  = q·p / (0.622 + 0.378·q)
//	Td = 243.5·ln(e/6.112) / (17.67 − ln(e/6.112))
//
// Wind speed is reported in knots (1 m s⁻¹ = 1.94384 kn). Wind direction is
// atan2(v, u) in degrees shifted by 180° and wrapped into [0, 360).
//
// # File Naming
//
// Retrieved files encode the 1-based catalog row and the sanitized event time
// (colons removed, spaces replaced with underscores), e.g.
// "era5_3_2021-07-04_140000.nc" and "random_3_7_2021-07-04_140000.nc".
// See [PointFileName], [RandomFileName] and [GridFileName].
package domain
