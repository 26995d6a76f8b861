// Package gxcan provides a CAN bus transport driver for Gurux components.
// Frames are carried either over a serial link to a CANUSB (Lawicel)
// adapter using its ASCII protocol, or as binary datagrams broadcast over
// UDP (CAN over IP).
//
// Features
//
//   - Fixed number of driver instances (modules) owned by a Registry.
//   - Serial (CANUSB) and UDP broadcast transports, selected per module.
//   - Background receive thread with callback dispatch and frame filters.
//   - Loopback suppression for the broadcast transport with session IDs.
//   - Tracing: zap logging gated by gxcommon.TraceLevel, localized messages.
//   - Metrics: Prometheus counters for sent, received and dropped frames.
//
// # Construction
//
// Use NewRegistry to create a registry and CreateModule to reserve a module.
// Init opens the transport selected by the endpoint.
//
// Example
//
//	r := gxcan.NewRegistry(gxcan.DefaultCapacity, gxcan.WithLogger(logger))
//	defer r.Close()
//
//	id, err := r.CreateModule()
//	if err != nil {
//	    // handle error
//	}
//	if err := r.Init(id, gxcan.ModeNormal, gxcan.UDPEndpoint{Port: 5000}); err != nil {
//	    // handle connect error
//	}
//	r.SetReceiveCallback(id, 1, gxcan.FrameSinkFunc(func(callerID uint8, canID uint32, size uint8, data []byte, flags uint32) error {
//	    // handle frame
//	    return nil
//	}))
//	if err := r.StartReceiveThread(id); err != nil {
//	    // handle error
//	}
//	_ = r.Send(id, 0x701, 2, []byte{0xDE, 0xAD}, 0)
//
// # Serial adapters
//
// A SerialEndpoint opens the CANUSB channel with the "O" command when the
// module is initialized and closes it with "C". Other device commands can be
// sent with SendCommand. Frames received while a command waits for its
// answer are kept for the receive thread.
//
// # Errors
//
// Errors can be compared with errors.Is against the Err* kinds. An *Error
// carries the failed operation and module. Error messages are lowercased per
// Go style guidelines.
//
// # Notes
//
// The callback is called from the receive thread. Long-running work in the
// callback should be offloaded to a separate goroutine, because the module
// doesn't read new frames while the callback runs.
package gxcan
